package loaderwithmetrics

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	log "github.com/sirupsen/logrus"

	"github.com/wabouhamad/nvidia-ci/pkg/dataloader"
)

const pushgatewayEnv = "NVCI_PROMETHEUS_PUSHGATEWAY"

var loadMetric = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "nvci_data_load_millis",
	Help:    "Milliseconds to fetch CI data",
	Buckets: []float64{100, 500, 1000, 5000, 10000, 30000, 60000, 300000, 600000},
}, []string{"loader"})

var errorMetric = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "nvci_data_load_errors",
	Help:    "Errors encountered while fetching CI data",
	Buckets: []float64{0, 1, 10, 100, 1000},
}, []string{"loader"})

// loaderOrder is the order loaders run in. Versions come first so that a
// broken registry is reported before any artifact is fetched.
var loaderOrder = []string{
	dataloader.VersionsLoaderName,
	dataloader.ProwLoaderName,
	dataloader.MicroShiftLoaderName,
}

type LoaderWithMetrics struct {
	loaders    []dataloader.DataLoader
	promPusher *push.Pusher
	log        log.FieldLogger
}

func New(wrappedLoaders []dataloader.DataLoader, logger log.FieldLogger) *LoaderWithMetrics {
	if logger == nil {
		logger = log.StandardLogger()
	}
	loader := &LoaderWithMetrics{
		loaders: wrappedLoaders,
		log:     logger,
	}
	loader.sortLoaders()

	if pushgateway := os.Getenv(pushgatewayEnv); pushgateway != "" {
		loader.promPusher = push.New(pushgateway, "nvci-loader")
		loader.promPusher.Collector(errorMetric)
		loader.promPusher.Collector(loadMetric)
	}

	return loader
}

// sortLoaders orders known loaders by loaderOrder. Unknown loaders keep their
// relative order and run last.
func (l *LoaderWithMetrics) sortLoaders() {
	rank := make(map[string]int, len(loaderOrder))
	for i, name := range loaderOrder {
		rank[name] = i
	}
	position := func(name string) int {
		if r, ok := rank[name]; ok {
			return r
		}
		return len(loaderOrder)
	}
	sort.SliceStable(l.loaders, func(i, j int) bool {
		return position(l.loaders[i].Name()) < position(l.loaders[j].Name())
	})
}

func (l *LoaderWithMetrics) Load() {
	overallStart := time.Now()
	l.log.Infof("starting %d loaders...", len(l.loaders))
	for _, loader := range l.loaders {
		l.log.Infof("starting loader %q with metrics wrapper", loader.Name())
		start := time.Now()
		loader.Load()
		totalTime := time.Since(start)
		l.log.Infof("loader %q complete after %+v", loader.Name(), totalTime)

		loadMetric.WithLabelValues(loader.Name()).Observe(float64(totalTime.Milliseconds()))
		errorMetric.WithLabelValues(loader.Name()).Observe(float64(len(loader.Errors())))
	}
	overallDuration := time.Since(overallStart)
	l.log.Infof("%d loaders finished in %+v...", len(l.loaders), overallDuration)
	loadMetric.WithLabelValues("total").Observe(float64(overallDuration.Milliseconds()))

	if l.promPusher != nil {
		l.log.Info("pushing metrics to prometheus gateway")
		if err := l.promPusher.Add(); err != nil {
			l.log.WithError(err).Error("could not push to prometheus pushgateway")
		} else {
			l.log.Info("successfully pushed metrics to prometheus gateway")
		}
	}
}

func (l *LoaderWithMetrics) Errors() []error {
	var errs []error
	for _, loader := range l.loaders {
		for _, err := range loader.Errors() {
			errs = append(errs, errors.Wrap(err, fmt.Sprintf("loader %q returned error", loader.Name())))
		}
	}
	return errs
}

// LoaderErrors returns the errors of the named loader only.
func (l *LoaderWithMetrics) LoaderErrors(name string) []error {
	for _, loader := range l.loaders {
		if loader.Name() == name {
			return loader.Errors()
		}
	}
	return nil
}
