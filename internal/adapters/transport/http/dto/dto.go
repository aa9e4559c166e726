package dto

// RegisterDTO field order is the order in which missing fields are reported.
type RegisterDTO struct {
	FullName string `json:"fullName" form:"fullName" validate:"required"`
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
	Email    string `json:"email"    form:"email"    validate:"required,email"`

	// Local paths of the uploaded multipart files.
	AvatarPath     string `json:"-" form:"-"`
	CoverImagePath string `json:"-" form:"-"`
}

type LoginDTO struct {
	Username string `json:"username" form:"username" validate:"required_without=Email"`
	Email    string `json:"email"    form:"email"`
	Password string `json:"password" form:"password"`
}

type RefreshDTO struct {
	RefreshToken string `json:"refreshToken" form:"refreshToken"`
}

type ChangePasswordDTO struct {
	OldPassword string `json:"oldPassword" form:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" form:"newPassword" validate:"required"`
}
