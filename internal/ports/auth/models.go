package auth

// Claims representa la información extraída del token.
// UserID es el id del usuario autenticado (IAM), nunca el id de perfil por rol.
type Claims struct {
	UserID   string
	Email    string
	Name     string
	TenantID string
}
