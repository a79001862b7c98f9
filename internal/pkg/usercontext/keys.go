package usercontext

// Keys for values stored on the fiber context by the auth middleware.
const (
	KeyUserContext = "USER_CONTEXT"
	KeyUserID      = "USER_ID"
	KeyUserEmail   = "USER_EMAIL"
)
