package authz

// Permitted decides whether the actor's tenant context satisfies the
// permission's scope against the concrete target. It is always called in
// addition to resolver membership: holding the permission key is necessary
// but not sufficient.
//
// Rules, by the permission's scope level:
//   - platform: permitted iff the actor holds the platform-admin capability.
//   - own: permitted iff the target's owning user is the actor, irrespective
//     of tenant identifiers.
//   - department/property/organization: permitted iff the actor's tenant
//     identifier at exactly that level is non-nil and equals the target's.
//     Levels below the permission's scope are not checked; reach is exact,
//     never transitive through the hierarchy.
func Permitted(perm Permission, actor UserContext, target Target) bool {
	switch perm.Scope {
	case ScopePlatform:
		return actor.PlatformAdmin
	case ScopeOwn:
		return target.OwnerID != 0 && target.OwnerID == actor.UserID
	default:
		actorID := actor.Tenant.At(perm.Scope)
		targetID := target.Tenant.At(perm.Scope)
		return actorID != nil && targetID != nil && *actorID == *targetID
	}
}
