package auth

const (
	RoleAdmin      = "admin"
	RoleAccountant = "accountant"
	RoleStaff      = "staff"
)

const (
	PermEmployeesRead  = "employees.read"
	PermEmployeesWrite = "employees.write"
	PermPayrollRead    = "payroll.read"
	PermPayrollWrite   = "payroll.write"
	PermPayrollRun     = "payroll.run"
	PermPayrollApprove = "payroll.approve"
	PermPayrollPay     = "payroll.pay"
	PermPayrollExport  = "payroll.export"
	PermAuditRead      = "audit.read"
	PermSystemAdmin    = "admin.system"
)

var DefaultPermissions = []string{
	PermEmployeesRead,
	PermEmployeesWrite,
	PermPayrollRead,
	PermPayrollWrite,
	PermPayrollRun,
	PermPayrollApprove,
	PermPayrollPay,
	PermPayrollExport,
	PermAuditRead,
	PermSystemAdmin,
}

// Approval is kept off the accountant role so the person preparing a run is
// not the person signing it off.
var RolePermissions = map[string][]string{
	RoleStaff: {
		PermEmployeesRead,
		PermPayrollRead,
	},
	RoleAccountant: {
		PermEmployeesRead,
		PermEmployeesWrite,
		PermPayrollRead,
		PermPayrollWrite,
		PermPayrollRun,
		PermPayrollPay,
		PermPayrollExport,
	},
	RoleAdmin: {
		PermEmployeesRead,
		PermEmployeesWrite,
		PermPayrollRead,
		PermPayrollWrite,
		PermPayrollRun,
		PermPayrollApprove,
		PermPayrollPay,
		PermPayrollExport,
		PermAuditRead,
		PermSystemAdmin,
	},
}
