package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"study_assistant_backend/internal/config"
	"study_assistant_backend/internal/model"
	"study_assistant_backend/internal/repository"
	"study_assistant_backend/internal/util"
	"study_assistant_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const otpTTL = 5 * time.Minute

// TokenPair 访问令牌与刷新令牌
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// ProfileUpdate 为空的字段保持不变
type ProfileUpdate struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
}

type AuthService struct {
	UserRepo *repository.UserRepository
	Cfg      *config.Config
	Mailer   Mailer
	now      func() time.Time
}

func NewAuthService(userRepo *repository.UserRepository, cfg *config.Config, mailer Mailer) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Cfg:      cfg,
		Mailer:   mailer,
		now:      time.Now,
	}
}

// Signup 注册后立即激活并签发令牌
func (s *AuthService) Signup(username, email, password string) (*model.User, *TokenPair, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if taken, err := s.UserRepo.UsernameExists(username); err != nil {
		return nil, nil, err
	} else if taken {
		return nil, nil, util.ErrUsernameTaken
	}
	if taken, err := s.UserRepo.EmailExists(email); err != nil {
		return nil, nil, err
	} else if taken {
		return nil, nil, util.ErrEmailRegistered
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	user := &model.User{
		Username: username,
		Email:    email,
		Password: string(hashedPassword),
		Role:     model.Student,
		IsActive: true,
	}
	if err := s.UserRepo.Create(user); err != nil {
		return nil, nil, err
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

// Login identifier 可以是邮箱或用户名
func (s *AuthService) Login(identifier, password string) (*model.User, *TokenPair, error) {
	identifier = strings.TrimSpace(identifier)
	user, err := s.UserRepo.FindByLogin(identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, util.ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if !user.IsActive {
		return nil, nil, util.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, nil, util.ErrInvalidCredentials
	}

	if err := s.UserRepo.UpdateLastLogin(user.ID); err != nil {
		logger.Log.Warn("Failed to update last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

// Refresh 用刷新令牌换取新的访问令牌
func (s *AuthService) Refresh(refreshToken string) (string, error) {
	claims, err := util.ParseJWT(refreshToken, s.Cfg.JWT.Secret)
	if err != nil || claims.TokenType != util.RefreshToken {
		return "", util.ErrInvalidToken
	}

	user, err := s.UserRepo.FindByID(claims.UserID)
	if err != nil || !user.IsActive {
		return "", util.ErrInvalidToken
	}
	return util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
}

// SendResetOTP 生成 6 位验证码，5 分钟有效，发送到用户邮箱
func (s *AuthService) SendResetOTP(ctx context.Context, email string) error {
	user, err := s.UserRepo.FindByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrUserNotFound
		}
		return err
	}

	otp, err := generateOTP()
	if err != nil {
		return err
	}
	if err := s.UserRepo.SaveOTP(user.ID, otp, s.now().Add(otpTTL)); err != nil {
		return err
	}

	return s.Mailer.Send(ctx, user.Email, "Password Reset OTP", fmt.Sprintf("Your OTP for Password Reset is : %s", otp))
}

// ResetPassword 校验验证码后重置密码
func (s *AuthService) ResetPassword(email, otp, newPassword string) error {
	user, err := s.checkOTP(email, otp)
	if err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.UserRepo.UpdatePassword(user.ID, string(hashed)); err != nil {
		return err
	}
	return s.UserRepo.ClearOTP(user.ID)
}

// VerifySignupOTP 校验注册验证码并激活账号
func (s *AuthService) VerifySignupOTP(email, otp string) error {
	user, err := s.checkOTP(email, otp)
	if err != nil {
		return err
	}
	if !user.IsActive {
		user.IsActive = true
		if err := s.UserRepo.Update(user); err != nil {
			return err
		}
	}
	return s.UserRepo.ClearOTP(user.ID)
}

func (s *AuthService) checkOTP(email, otp string) (*model.User, error) {
	user, err := s.UserRepo.FindByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}

	profile, err := s.UserRepo.FindProfile(user.ID)
	if err != nil {
		return nil, err
	}
	if profile.OTP == nil || *profile.OTP != otp {
		return nil, util.ErrInvalidOTP
	}
	if profile.OTPExpiry == nil || profile.OTPExpiry.Before(s.now()) {
		return nil, util.ErrOTPExpired
	}
	return user, nil
}

func (s *AuthService) Profile(userID uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// UpdateProfile 修改用户名/邮箱时检查唯一性
func (s *AuthService) UpdateProfile(userID uint, upd ProfileUpdate) (*model.User, error) {
	user, err := s.Profile(userID)
	if err != nil {
		return nil, err
	}

	if upd.Username = strings.TrimSpace(upd.Username); upd.Username != "" && upd.Username != user.Username {
		if taken, err := s.UserRepo.UsernameExists(upd.Username); err != nil {
			return nil, err
		} else if taken {
			return nil, util.ErrUsernameTaken
		}
		user.Username = upd.Username
	}
	if upd.Email = strings.ToLower(strings.TrimSpace(upd.Email)); upd.Email != "" && upd.Email != user.Email {
		if taken, err := s.UserRepo.EmailExists(upd.Email); err != nil {
			return nil, err
		} else if taken {
			return nil, util.ErrEmailRegistered
		}
		user.Email = upd.Email
	}
	if upd.FirstName != "" {
		user.FirstName = strings.TrimSpace(upd.FirstName)
	}
	if upd.LastName != "" {
		user.LastName = strings.TrimSpace(upd.LastName)
	}

	if err := s.UserRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) issueTokens(user *model.User) (*TokenPair, error) {
	access, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}
	refresh, err := util.GenerateRefreshJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.RefreshExpireTime)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
