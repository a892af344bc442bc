package auth

import "github.com/IbarraCristobal-cpu/Taiga--Masala/internal/models"

type Capability string

const (
	CapManageCatalog   Capability = "manage catalog"
	CapManageOrders    Capability = "manage orders"
	CapAdvanceDelivery Capability = "advance deliveries"
	CapModerateReviews Capability = "moderate reviews"
	CapViewReports     Capability = "view reports"
	CapManageCoupons   Capability = "manage coupons"
)

var allCapabilities = []Capability{
	CapManageCatalog,
	CapManageOrders,
	CapAdvanceDelivery,
	CapModerateReviews,
	CapViewReports,
	CapManageCoupons,
}

var policy = map[models.Role][]Capability{
	models.RoleAdmin:     allCapabilities,
	models.RoleDeveloper: allCapabilities,
	models.RoleDelivery:  {CapAdvanceDelivery},
	models.RoleCustomer:  nil,
}

// Can reports whether role is granted capability.
func Can(role models.Role, capability Capability) bool {
	for _, c := range policy[role] {
		if c == capability {
			return true
		}
	}
	return false
}

// IsStaff reports whether role may act on other customers' orders.
func IsStaff(role models.Role) bool {
	return Can(role, CapManageOrders)
}
