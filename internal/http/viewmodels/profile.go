package viewmodels

type ProfileViewData struct {
	Layout    LayoutData
	Role      string
	Email     string
	Name      string
	Phone     string
	Unclaimed bool
	Alert     *AdminUsersAlert
}
