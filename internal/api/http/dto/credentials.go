package dto

type AWSCredentialsRequest struct {
	AccessKeyID     string `json:"aws_access_key_id" binding:"required"`
	SecretAccessKey string `json:"aws_secret_access_key" binding:"required"`
	SessionToken    string `json:"aws_session_token" binding:"required"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
