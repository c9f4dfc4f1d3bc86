package domain

// DirectoryUser is a user-type principal on the remote directory.
type DirectoryUser struct {
	ID                string `json:"id"`
	UserPrincipalName string `json:"userPrincipalName"`
	DisplayName       string `json:"displayName,omitempty"`
}

// DirectoryGroup is the remote collaboration-group resource. It is owned by
// the directory service and never persisted locally; the engine reads it
// before every diff because remote membership is the source of truth.
type DirectoryGroup struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
	MailNickname string `json:"mailNickname,omitempty"`
}
