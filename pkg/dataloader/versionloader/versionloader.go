// Package versionloader fetches the versions tracked for the test matrix:
// OCP release patches from quay.io, GPU operator releases from nvcr.io and
// the digest of the GPU operator main branch bundle from ghcr.io.
package versionloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"k8s.io/apimachinery/pkg/util/sets"

	v1 "github.com/wabouhamad/nvidia-ci/pkg/apis/versions/v1"
	"github.com/wabouhamad/nvidia-ci/pkg/dataloader"
	"github.com/wabouhamad/nvidia-ci/pkg/testmatrix"
)

const (
	quayPageSize  = 100
	quayTagFilter = "like:%.%.%-multi-x86_64"
)

var (
	ocpTagRegex = regexp.MustCompile(`^(\d+\.\d+)\.(\d+(?:-rc\.\d+)?)-multi-x86_64$`)
	gpuTagRegex = regexp.MustCompile(`^v(2\d\.\d+)\.(\d+)$`)
)

// Endpoints are the registry APIs queried. They are configurable for testing.
type Endpoints struct {
	QuayTagsURL     string
	NVCRAuthURL     string
	NVCRTagsURL     string
	GHCRAuthURL     string
	GHCRManifestURL string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		QuayTagsURL:     "https://quay.io/api/v1/repository/openshift-release-dev/ocp-release/tag/",
		NVCRAuthURL:     "https://nvcr.io/proxy_auth?scope=repository:nvidia/gpu-operator:pull",
		NVCRTagsURL:     "https://nvcr.io/v2/nvidia/gpu-operator/tags/list",
		GHCRAuthURL:     "https://ghcr.io/token?scope=repository:nvidia/gpu-operator:pull",
		GHCRManifestURL: "https://ghcr.io/v2/nvidia/gpu-operator/gpu-operator-bundle/manifests/main-latest",
	}
}

type VersionLoader struct {
	ctx        context.Context
	httpClient *http.Client
	endpoints  Endpoints
	ignored    sets.Set[string]
	// ghcrToken skips the anonymous ghcr.io token request when set.
	ghcrToken string
	log       log.FieldLogger

	versions v1.Map
	errors   []error
}

func New(ctx context.Context, httpClient *http.Client, endpoints Endpoints, ignoredOCPVersions []string, ghcrToken string, logger log.FieldLogger) *VersionLoader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &VersionLoader{
		ctx:        ctx,
		httpClient: httpClient,
		endpoints:  endpoints,
		ignored:    sets.New(ignoredOCPVersions...),
		ghcrToken:  ghcrToken,
		log:        logger.WithField("loader", dataloader.VersionsLoaderName),
	}
}

func (l *VersionLoader) Name() string {
	return dataloader.VersionsLoaderName
}

func (l *VersionLoader) Errors() []error {
	return l.errors
}

// Versions returns the fetched versions, or nil if Load failed.
func (l *VersionLoader) Versions() v1.Map {
	return l.versions
}

func (l *VersionLoader) Load() {
	ocp, err := l.FetchOCPVersions()
	if err != nil {
		l.errors = append(l.errors, errors.WithMessage(err, "could not fetch OCP versions"))
		return
	}
	gpu, err := l.FetchGPUOperatorVersions()
	if err != nil {
		l.errors = append(l.errors, errors.WithMessage(err, "could not fetch GPU operator versions"))
		return
	}
	digest, err := l.FetchMainLatestDigest()
	if err != nil {
		l.errors = append(l.errors, errors.WithMessage(err, "could not fetch GPU operator main-latest digest"))
		return
	}

	l.versions = v1.NewStore(digest, gpu, ocp)
	l.log.Infof("fetched %d OCP and %d GPU operator minors", len(ocp), len(gpu))
}

// FetchOCPVersions pages through the multi-arch OCP release tags and returns
// the highest patch of every minor that is not ignored.
func (l *VersionLoader) FetchOCPVersions() (map[string]string, error) {
	versions := map[string]string{}
	for page, more := 1, true; more; page++ {
		u, err := url.Parse(l.endpoints.QuayTagsURL)
		if err != nil {
			return nil, errors.Wrap(err, "invalid quay url")
		}
		q := u.Query()
		q.Set("limit", strconv.Itoa(quayPageSize))
		q.Set("page", strconv.Itoa(page))
		q.Set("filter_tag_name", quayTagFilter)
		q.Set("onlyActiveTags", "true")
		u.RawQuery = q.Encode()

		body, err := l.getJSON(u.String(), "")
		if err != nil {
			return nil, err
		}

		for _, tag := range body.Get("tags.#.name").Array() {
			m := ocpTagRegex.FindStringSubmatch(tag.String())
			if m == nil {
				continue
			}
			minor := m[1]
			if l.ignored.Has(minor) {
				continue
			}
			versions[minor] = testmatrix.MaxVersion(versions[minor], fmt.Sprintf("%s.%s", minor, m[2]))
		}
		more = body.Get("has_additional").Bool()
		l.log.WithField("page", page).Debugf("read quay tag page, %d minors so far", len(versions))
	}
	return versions, nil
}

// FetchGPUOperatorVersions returns the highest patch of every released GPU
// operator minor.
func (l *VersionLoader) FetchGPUOperatorVersions() (map[string]string, error) {
	l.log.Info("calling NVCR authentication API")
	auth, err := l.getJSON(l.endpoints.NVCRAuthURL, "")
	if err != nil {
		return nil, err
	}
	token := auth.Get("token").String()
	if token == "" {
		return nil, errors.New("nvcr.io returned no token")
	}

	l.log.Info("listing tags of the GPU operator image")
	body, err := l.getJSON(l.endpoints.NVCRTagsURL, token)
	if err != nil {
		return nil, err
	}

	versions := map[string]string{}
	for _, tag := range body.Get("tags").Array() {
		m := gpuTagRegex.FindStringSubmatch(tag.String())
		if m == nil {
			continue
		}
		versions[m[1]] = testmatrix.MaxVersion(versions[m[1]], fmt.Sprintf("%s.%s", m[1], m[2]))
	}
	return versions, nil
}

// FetchMainLatestDigest returns the config digest of the main-latest GPU
// operator bundle.
func (l *VersionLoader) FetchMainLatestDigest() (string, error) {
	token := l.ghcrToken
	if token != "" {
		l.log.Info("using configured token to authenticate against ghcr.io")
	} else {
		l.log.Info("calling ghcr.io authentication API")
		auth, err := l.getJSON(l.endpoints.GHCRAuthURL, "")
		if err != nil {
			return "", err
		}
		token = auth.Get("token").String()
	}

	body, err := l.getJSON(l.endpoints.GHCRManifestURL, token)
	if err != nil {
		return "", err
	}
	digest := body.Get("config.digest").String()
	if digest == "" {
		return "", errors.New("bundle manifest has no config digest")
	}
	return digest, nil
}

func (l *VersionLoader) getJSON(uri, token string) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(l.ctx, http.MethodGet, uri, nil)
	if err != nil {
		return gjson.Result{}, errors.Wrapf(err, "could not create request for %s", uri)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, errors.Wrapf(err, "request to %s failed", uri)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, errors.Errorf("%s returned %d %s", uri, resp.StatusCode, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, errors.Wrapf(err, "could not read response from %s", uri)
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, errors.Errorf("%s returned invalid JSON", uri)
	}
	return gjson.ParseBytes(data), nil
}
