package viewmodels

type AdminPermissionItem struct {
	Email   string
	PageKey string
}

type AdminPermissionsViewData struct {
	Layout      LayoutData
	Grants      []AdminPermissionItem
	PageKeys    []string
	Allowlisted []string
	Alert       *AdminUsersAlert
}
