package viewmodels

// InviteAcceptViewData backs the password-set page reached from an invite
// email. The raw token rides along in a hidden form field.
type InviteAcceptViewData struct {
	CSRFToken    string
	Token        string
	Email        string
	ErrorMessage string
	TokenInvalid bool
}
