// internal/auth/context.go
//
// Staff identity carried on the request context.
//
// Usage
// -----
//
//	ctx = auth.WithStaff(ctx, "1234")   // set by Middleware after JWT check
//	id, ok := auth.StaffID(ctx)         // "1234", true
//
// The staff id is the JWT "sub" claim.  It becomes the actor on audit rows and
// verified_by on link records.
package auth

import "context"

// staffKey is unexported to avoid context-key collisions.
type staffKey struct{}

// WithStaff returns a new context carrying staffID.
func WithStaff(ctx context.Context, staffID string) context.Context {
	return context.WithValue(ctx, staffKey{}, staffID)
}

// StaffID extracts the staff id from ctx.  It returns ("", false) when none
// is set.
func StaffID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(staffKey{}).(string)
	return id, ok && id != ""
}
