package viewmodels

// AdminUsersAlert is an inline error shown above the users table.
type AdminUsersAlert struct {
	Title       string
	Message     string
	Destructive bool
}

type AdminUsersForm struct {
	Email string
	Role  string
}

type AdminUsersUserItem struct {
	ID               int64
	Email            string
	Role             string
	IsActive         bool
	IsSelf           bool
	IsLastSuperAdmin bool
	CanEditRole      bool
	CanDeactivate    bool
}

type AdminUsersViewData struct {
	Layout   LayoutData
	Users    []AdminUsersUserItem
	HasUsers bool
	OpenAdd  bool
	Form     AdminUsersForm
	Alert    *AdminUsersAlert
}
