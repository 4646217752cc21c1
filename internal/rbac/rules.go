package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"patient": {
		"assignment:view-own",
		"record:start",
		"record:answer",
		"record:finish",
		"record:view-own",
		"progress:view-own",
		"user:change_password",
	},
	"doctor": {
		"assignment:view",
		"patients:list",
		"patients:bind",
		"patients:assign",
		"record:view-bound",
		"progress:view-bound",
		"review:list",
		"review:verdict",
		"user:change_password",
	},
	"admin": {
		"*", // everything
	},
}
