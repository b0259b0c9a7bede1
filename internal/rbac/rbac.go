package rbac

import "inkwell/api/internal/identity"

type Action string

const (
	ActionRead    Action = "read"
	ActionComment Action = "comment"
	ActionWrite   Action = "write"
	ActionAdmin   Action = "admin"
)

func Can(role identity.Role, action Action) bool {
	switch role {
	case identity.RoleAdmin:
		return true
	case identity.RoleWriter:
		return action == ActionRead || action == ActionComment || action == ActionWrite
	case identity.RoleMember:
		return action == ActionRead || action == ActionComment
	default:
		return false
	}
}

// CanModifyComment allows the comment's author and admins. The owning post's
// author gets no special power over other people's comments.
func CanModifyComment(user identity.User, commentAuthorID string) bool {
	return user.ID == commentAuthorID || user.Role == identity.RoleAdmin
}

// CanDeletePost allows the post's owner and admins.
func CanDeletePost(user identity.User, postAuthorID string) bool {
	return user.ID == postAuthorID || user.Role == identity.RoleAdmin
}

// CanEditPost matches delete: owner or admin.
func CanEditPost(user identity.User, postAuthorID string) bool {
	return user.ID == postAuthorID || user.Role == identity.RoleAdmin
}
