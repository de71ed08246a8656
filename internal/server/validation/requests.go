package validation

// Request bodies accepted by the HTTP API.

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func (r *SignInRequest) Validate() error { return Struct(r) }

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (r *RefreshTokenRequest) Validate() error { return Struct(r) }

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (r *ForgotPasswordRequest) Validate() error { return Struct(r) }

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=6,pwbytes"`
}

func (r *ResetPasswordRequest) Validate() error { return Struct(r) }

type RegisterRequest struct {
	Email       string  `json:"email" validate:"required,email"`
	Fullname    string  `json:"fullname" validate:"required"`
	Password    string  `json:"password" validate:"required,min=6,pwbytes"`
	DisplayName *string `json:"displayName"`
	Avatar      *string `json:"avatar" validate:"omitempty,url"`
}

func (r *RegisterRequest) Validate() error { return Struct(r) }

// UpdateProfileRequest fields are optional; a present field must not be
// blank.
type UpdateProfileRequest struct {
	Email       *string `json:"email"`
	Fullname    *string `json:"fullname"`
	DisplayName *string `json:"displayName"`
}

func (r *UpdateProfileRequest) Validate() error {
	var errs []string
	notBlank(r.Email, "email", "Email must not be empty", &errs)
	notBlank(r.Fullname, "", "Fullname must not be empty", &errs)
	if len(errs) > 0 {
		return &Error{Messages: errs}
	}
	return nil
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required,min=6"`
	NewPassword string `json:"newPassword" validate:"required,min=6,pwbytes"`
}

func (r *ChangePasswordRequest) Validate() error { return Struct(r) }
