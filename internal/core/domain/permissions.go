package domain

// roleGrants maps an actor role to the target roles it may manage. Roles
// missing from a table have no rights at all.
type roleGrants map[Role]map[Role]struct{}

func grants(table map[Role][]Role) roleGrants {
	out := make(roleGrants, len(table))
	for actor, targets := range table {
		set := make(map[Role]struct{}, len(targets))
		for _, t := range targets {
			set[t] = struct{}{}
		}
		out[actor] = set
	}
	return out
}

func (g roleGrants) allows(actor, target Role) bool {
	_, ok := g[actor][target]
	return ok
}

var canCreate = grants(map[Role][]Role{
	RoleSuperAdmin: {RoleAdmin, RoleManagerQA, RoleManagerQC, RoleUser},
	RoleAdmin:      {RoleManagerQA, RoleManagerQC, RoleUser},
})

var canDeactivate = grants(map[Role][]Role{
	RoleSuperAdmin: {RoleAdmin, RoleManagerQA, RoleManagerQC, RoleUser},
	RoleAdmin:      {RoleManagerQA, RoleManagerQC, RoleUser},
})

// CanCreate reports whether an actor with role actor may create an account with role target.
func CanCreate(actor, target Role) bool {
	return canCreate.allows(actor, target)
}

// CanDeactivate reports whether actor may deactivate or re-activate an account with role target.
func CanDeactivate(actor, target Role) bool {
	return canDeactivate.allows(actor, target)
}

// CreatableRoles lists the roles actor may assign, most privileged first.
func CreatableRoles(actor Role) []Role {
	var out []Role
	for _, r := range Roles() {
		if CanCreate(actor, r) {
			out = append(out, r)
		}
	}
	return out
}

// RequireRole returns ErrForbidden unless actor is one of allowed.
func RequireRole(actor Role, allowed ...Role) error {
	for _, r := range allowed {
		if r == actor {
			return nil
		}
	}
	return ErrForbidden
}
