package viewmodels

type AdminInviteForm struct {
	Email string
	Name  string
	Role  string
}

type AdminInviteResultItem struct {
	Email   string
	Success bool
	Error   string
}

type AdminInvitesViewData struct {
	Layout  LayoutData
	Form    AdminInviteForm
	Results []AdminInviteResultItem
	Alert   *AdminUsersAlert
}
