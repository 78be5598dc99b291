package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/Whoagir/Afisha/internal/domain/user"
)

// 認証ゲートウェイが付与するヘッダー
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

const principalKey = "principal"

// Principal はヘッダーから利用者を読み取りコンテキストに保存する。
// ヘッダーが無い場合は匿名として扱い、不正なロールは 401 を返す
func Principal() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(HeaderUserID)
			if id == "" {
				return next(c)
			}
			role := user.Role(c.Request().Header.Get(HeaderUserRole))
			if role == "" {
				role = user.RoleAttendee
			}
			p, err := user.NewPrincipal(id, role)
			if err != nil {
				return err
			}
			c.Set(principalKey, p)
			return next(c)
		}
	}
}

// CurrentPrincipal は認証済みの利用者を返す。匿名の場合は user.ErrUnauthenticated
func CurrentPrincipal(c echo.Context) (*user.Principal, error) {
	p, ok := c.Get(principalKey).(*user.Principal)
	if !ok || p == nil {
		return nil, user.ErrUnauthenticated
	}
	return p, nil
}

// SetPrincipal はテストなどで利用者を直接設定する
func SetPrincipal(c echo.Context, p *user.Principal) {
	c.Set(principalKey, p)
}
