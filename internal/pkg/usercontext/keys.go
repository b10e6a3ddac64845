package usercontext

// Shared Locals keys used across controllers and middlewares
const (
	AuthKey          = "authenticated"
	KeyUserID        = "user_id"
	KeyUserEmail     = "user_email"
	KeyFromProtected = "from_protected"
)
