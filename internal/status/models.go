package status

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

const (
	FieldTerraform   = "Terraform"
	FieldMLWorkbench = "MLWorkbench"

	FieldClusterName          = "cluster_name"
	FieldKubeflowURL          = "Kubeflow_URL"
	FieldSFTPURL              = "SFTP_URL"
	FieldPZExternalURL        = "PZ_External_URL"
	FieldSFTPBucketDev        = "s3_sftp_bucket_dev"
	FieldSFTPBucketStaging    = "s3_sftp_bucket_staging"
	FieldSFTPBucketProduction = "s3_sftp_bucket_production"
	FieldMetadataBucketDev    = "s3_metadata_bucket_dev"
	FieldMetadataBucketStage  = "s3_metadata_bucket_staging"
	FieldMetadataBucketProd   = "s3_metadata_bucket_production"

	lastUpdatedKey = "Last Updated"
)

// Status tokens written to FieldTerraform and FieldMLWorkbench.
const (
	Creating    = "Creating"
	Complete    = "Complete"
	Error       = "Error"
	Deleting    = "Deleting"
	Deleted     = "Deleted"
	DeleteError = "Delete Error"
	Redeploying = "Redeploying"
	Redeployed  = "Redeployed"
	RedeployErr = "Redeploy Error"
	Deploying   = "Deploying"
	Deployed    = "Deployed"
	DeployError = "Deploy Error"
)

// Record is the latest status snapshot of one tenant. On disk it is a flat
// JSON object with a "Last Updated" key next to the status fields.
type Record struct {
	LastUpdated time.Time
	Fields      map[string]string
}

func (r Record) Get(field string) string {
	return r.Fields[field]
}

// FieldNames returns the status field names in stable order.
func (r Record) FieldNames() []string {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r Record) MarshalJSON() ([]byte, error) {
	doc := make(map[string]string, len(r.Fields)+1)
	for k, v := range r.Fields {
		doc[k] = v
	}
	doc[lastUpdatedKey] = r.LastUpdated.UTC().Format(time.RFC3339Nano)
	return json.Marshal(doc)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	r.Fields = make(map[string]string, len(doc))
	for k, raw := range doc {
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			// keep non-string values written by other tools verbatim
			value = string(raw)
		}
		if k == lastUpdatedKey {
			ts, err := parseTimestamp(value)
			if err != nil {
				return fmt.Errorf("parse %q: %w", lastUpdatedKey, err)
			}
			r.LastUpdated = ts
			continue
		}
		r.Fields[k] = value
	}
	return nil
}

func parseTimestamp(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	// older records were stamped without a zone
	return time.ParseInLocation(time.DateTime, value, time.UTC)
}
