package flags

import (
	"context"

	"cloud.google.com/go/storage"
	"github.com/spf13/pflag"

	"github.com/wabouhamad/nvidia-ci/pkg/dataloader/prowloader/gcs"
)

// GoogleCloudFlags contain configuration information for Google cloud-related services.
type GoogleCloudFlags struct {
	ServiceAccountCredentialFile string
	OAuthClientCredentialFile    string
	StorageBucket                string
}

func NewGoogleCloudFlags() *GoogleCloudFlags {
	return &GoogleCloudFlags{
		ServiceAccountCredentialFile: envOr("GOOGLE_APPLICATION_CREDENTIALS", ""),
		StorageBucket:                "test-platform-results",
	}
}

func (f *GoogleCloudFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.ServiceAccountCredentialFile,
		"google-service-account-credential-file",
		f.ServiceAccountCredentialFile,
		"location of a credential file described by https://cloud.google.com/docs/authentication/production")

	fs.StringVar(&f.OAuthClientCredentialFile,
		"google-oauth-credential-file",
		f.OAuthClientCredentialFile,
		"location of a credential file described by https://developers.google.com/people/quickstart/go")

	fs.StringVar(&f.StorageBucket, "google-storage-bucket", f.StorageBucket, "GCS bucket to pull artifacts from")
}

func (f *GoogleCloudFlags) GetStorageClient(ctx context.Context) (*storage.Client, error) {
	return gcs.NewGCSClient(ctx, f.ServiceAccountCredentialFile, f.OAuthClientCredentialFile)
}
