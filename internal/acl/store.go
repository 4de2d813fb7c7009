// internal/acl/store.go
//
// Small query helpers for staff Role‑Based Access Control.
//
// Context
// -------
// The ACL model lives in the same MySQL schema as the audit trail:
//
//	role        (id PK, name, enabled)
//	role_acl    (role_id, component, action, permitted)
//	staff_role  (staff_id, role_id)
//
// staff_id is the JWT subject, usually a Discord user id.  The API needs
// answers to two questions:
//  1. Which *role names* does staff member X have?   → `StaffRoles()`
//  2. Is role R permitted for component/action?      → `RoleAllowed()`
//
// Both accept any sqlx.QueryerContext so tests can hand in a sqlmock-backed
// *sqlx.DB.
package acl

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
)

// Component is the role_acl.component value for link-state actions.
const Component = "profile"

// StaffRoles returns the role *names* bound to staffID.  Disabled roles are
// filtered out.
func StaffRoles(ctx context.Context, db sqlx.QueryerContext, staffID string) ([]string, error) {
	const q = `SELECT r.name
                 FROM staff_role sr
                 JOIN role r ON r.id = sr.role_id
                WHERE sr.staff_id = ? AND r.enabled = TRUE`

	roles := make([]string, 0, 4)
	if err := sqlx.SelectContext(ctx, db, &roles, q, staffID); err != nil {
		return nil, errors.Wrapf(err, "roles for %s", staffID)
	}
	return roles, nil
}

// RoleAllowed reports whether *any* of the candidate roles is permitted for the
// given component + action.  It executes one query using IN (? … ?).
//
// Empty roles slice returns false, nil.
func RoleAllowed(ctx context.Context, db sqlx.QueryerContext, roles []string, component, action string) (bool, error) {
	if len(roles) == 0 {
		return false, nil
	}

	q, args, err := sqlx.In(`SELECT 1
            FROM role_acl ra
            JOIN role r ON r.id = ra.role_id
           WHERE r.name IN (?)
             AND ra.component = ?
             AND ra.action   = ?
             AND ra.permitted = TRUE
           LIMIT 1`, roles, component, action)
	if err != nil {
		return false, errors.Wrap(err, "build acl query")
	}

	var dummy int
	err = db.QueryRowxContext(ctx, q, args...).Scan(&dummy)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "acl lookup")
	}
	return true, nil
}

// Allowed combines StaffRoles and RoleAllowed for Component.
func Allowed(ctx context.Context, db sqlx.QueryerContext, staffID, action string) (bool, error) {
	roles, err := StaffRoles(ctx, db, staffID)
	if err != nil {
		return false, err
	}
	return RoleAllowed(ctx, db, roles, Component, action)
}
