package shared

// Front-desk permissions declared for the authorization catalog.
const (
	PermReservationsViewProperty   = "reservation.view.property"
	PermReservationsManageProperty = "reservation.manage.property"
	PermReservationsViewOrg        = "reservation.view.organization"
	PermGuestsViewProperty         = "guest.view.property"
	PermGuestsManageProperty       = "guest.manage.property"
)

// FrontDeskScopes lists all permissions related to the front-desk module.
func FrontDeskScopes() []string {
	return []string{
		PermReservationsViewProperty,
		PermReservationsManageProperty,
		PermReservationsViewOrg,
		PermGuestsViewProperty,
		PermGuestsManageProperty,
	}
}
