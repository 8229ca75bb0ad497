package config

// Firebase 为空时不启用 Firestore 存储和 Firebase ID Token 校验
type Firebase struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
	VerifyIDToken   bool   `json:"verify_id_token" yaml:"verify_id_token"`
}
