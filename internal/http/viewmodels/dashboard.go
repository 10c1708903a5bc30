package viewmodels

type DashboardViewData struct {
	Layout LayoutData

	// Staff counters, only populated for admin-level viewers.
	AccountCount     int64
	ParticipantCount int
	MentorCount      int
}
