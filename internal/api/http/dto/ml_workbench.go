package dto

import "github.com/EternisAI/zone-orchestrator/internal/workflow"

// DeployMLWorkbenchRequest is posted by the provisioning pipeline when it finishes.
type DeployMLWorkbenchRequest struct {
	JenkinsJobStatus             string `json:"jenkins_job_status"`
	JenkinsJobID                 string `json:"jenkins_job_id"`
	DeploymentName               string `json:"deployment_name"`
	UserID                       string `json:"user_id"`
	PartnerID                    string `json:"partner_id" binding:"required"`
	AccountID                    string `json:"account_id"`
	SFTPBucketNameDev            string `json:"sftp_bucket_name_dev"`
	MetadataBucketNameDev        string `json:"metadata_bucket_name_dev"`
	SFTPBucketNameProduction     string `json:"sftp_bucket_name_production"`
	MetadataBucketNameProduction string `json:"metadata_bucket_name_production"`
	SFTPBucketNameStaging        string `json:"sftp_bucket_name_staging"`
	MetadataBucketNameStaging    string `json:"metadata_bucket_name_staging"`
	EKSClusterName               string `json:"eks_cluster_name"`
	Region                       string `json:"region"`
	AuthorizedKeys               string `json:"authorized_keys"`
}

func (r *DeployMLWorkbenchRequest) ToDeployment(partnerID string) workflow.WorkbenchDeployment {
	return workflow.WorkbenchDeployment{
		PartnerID:      partnerID,
		PipelineStatus: r.JenkinsJobStatus,
		PipelineJobID:  r.JenkinsJobID,
		ClusterName:    r.EKSClusterName,
		SFTPBuckets: workflow.Buckets{
			Dev:        r.SFTPBucketNameDev,
			Staging:    r.SFTPBucketNameStaging,
			Production: r.SFTPBucketNameProduction,
		},
		MetadataBuckets: workflow.Buckets{
			Dev:        r.MetadataBucketNameDev,
			Staging:    r.MetadataBucketNameStaging,
			Production: r.MetadataBucketNameProduction,
		},
		AuthorizedKeys: r.AuthorizedKeys,
	}
}
