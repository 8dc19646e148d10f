package domain

// ServiceAccount is the subset of a Google service-account key file needed
// to mint FCM access tokens. It is never mutated after parsing.
type ServiceAccount struct {
	ProjectID    string `json:"project_id"`
	ClientEmail  string `json:"client_email"`
	PrivateKey   string `json:"private_key"`
	PrivateKeyID string `json:"private_key_id"`
}

// Validate enforces the fields the signer and token endpoint cannot work without.
func (s *ServiceAccount) Validate() error {
	if s.ClientEmail == "" || s.PrivateKey == "" {
		return ErrIncompleteAccount
	}
	return nil
}
