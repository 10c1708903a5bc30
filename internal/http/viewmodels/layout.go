// Package viewmodels holds the data shapes passed into page templates.
package viewmodels

// LayoutData is the common chrome for every rendered page.
type LayoutData struct {
	Title        string
	CSRFToken    string
	UserEmail    string
	UserRole     string
	IsAdminLevel bool
	IsSuperAdmin bool
	Toast        *ToastViewData
	ActivePath   string
}

// ToastViewData is a one-shot notification carried across a redirect.
type ToastViewData struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}
