package shared

// HR permissions declared for the authorization catalog.
const (
	PermEmployeesViewDept    = "employee.view.department"
	PermEmployeesManageProp  = "employee.manage.property"
	PermDocumentsReadOwn     = "document.read.own"
	PermDocumentsReadDept    = "document.read.department"
	PermDocumentsManageProp  = "document.manage.property"
	PermTrainingViewDept     = "training.view.department"
	PermTrainingManageProp   = "training.manage.property"
	PermPayrollViewOrg       = "payroll.view.organization"
	PermPayrollManageOrg     = "payroll.manage.organization"
	PermVendorsViewProperty  = "vendor.view.property"
	PermVendorsManageProp    = "vendor.manage.property"
)

// HRScopes lists all permissions related to the HR module.
func HRScopes() []string {
	return []string{
		PermEmployeesViewDept,
		PermEmployeesManageProp,
		PermDocumentsReadOwn,
		PermDocumentsReadDept,
		PermDocumentsManageProp,
	}
}

// TrainingScopes lists all permissions related to the training module.
func TrainingScopes() []string {
	return []string{PermTrainingViewDept, PermTrainingManageProp}
}

// PayrollScopes lists all permissions related to the payroll module.
func PayrollScopes() []string {
	return []string{PermPayrollViewOrg, PermPayrollManageOrg}
}

// VendorScopes lists all permissions related to the vendor/concierge module.
func VendorScopes() []string {
	return []string{PermVendorsViewProperty, PermVendorsManageProp}
}
