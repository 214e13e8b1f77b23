package server

import (
	"fmt"
	"net/http"
	"strings"

	jwt "github.com/golang-jwt/jwt/v4"
	"github.com/zenazn/goji/web"

	"github.com/wsiserve/wsiserve/wsi"
)

// GenerateJWT returns a signed token for a user, for provisioning clients.
func (s *Service) GenerateJWT(user string) (string, error) {
	token := jwt.New(jwt.SigningMethodHS256)

	claims := token.Claims.(jwt.MapClaims)
	claims["user"] = user

	tokenString, err := token.SignedString([]byte(s.config.Auth.SecretKey))
	if err != nil {
		return "", fmt.Errorf("error with JWT signing: %v", err)
	}
	return tokenString, nil
}

// isAuthorized is middleware that validates a JWT and sets the c.Env["user"]
// field to the authenticated user.
func (s *Service) isAuthorized(c *web.C, h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		if c.Env == nil {
			c.Env = make(map[interface{}]interface{})
		}
		if s.config.Auth.OpenAccess {
			c.Env["user"] = "anonymous"
			h.ServeHTTP(w, r)
			return
		}
		reqToken := r.Header.Get("Authorization")
		if len(reqToken) == 0 {
			BadRequest(w, r, "JWT required via Authorization in request header")
			return
		}
		splitToken := strings.Split(reqToken, "Bearer")
		if len(splitToken) != 2 {
			BadRequest(w, r, "bearer not in proper format")
			return
		}
		reqToken = strings.TrimSpace(splitToken[1])
		if len(reqToken) == 0 {
			BadRequest(w, r, "requests require JWT authentication")
			return
		}
		token, err := jwt.Parse(reqToken, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("error signing method: %v", token.Header["alg"])
			}
			return []byte(s.config.Auth.SecretKey), nil
		})
		if err != nil {
			BadRequest(w, r, "error parsing JWT: %v", err)
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			BadRequest(w, r, "failed authorization")
			return
		}
		userClaim, found := claims["user"]
		if !found {
			BadRequest(w, r, "JWT carries no user claim")
			return
		}
		user, ok := userClaim.(string)
		if !ok {
			BadRequest(w, r, "user %v is not a simple string", userClaim)
			return
		}
		c.Env["user"] = user
		h.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

// requestUser returns the authenticated user set by the auth middleware.
func requestUser(c web.C) string {
	if u, ok := c.Env["user"].(string); ok {
		return u
	}
	return ""
}

// checkPermission verifies the user may read the image, consulting the
// short-TTL decision cache before the metadata store.
func (s *Service) checkPermission(user, imageUUID string) error {
	if s.config.Auth.OpenAccess {
		return nil
	}
	if allowed, found := s.permCache.Get(user, imageUUID); found {
		if !allowed {
			return wsi.AuthorizationError{Msg: fmt.Sprintf("user %q may not read image %s", user, imageUUID)}
		}
		return nil
	}
	allowed, err := s.meta.HasPermission(user, imageUUID)
	if err != nil {
		return err
	}
	s.permCache.Put(user, imageUUID, allowed)
	if !allowed {
		return wsi.AuthorizationError{Msg: fmt.Sprintf("user %q may not read image %s", user, imageUUID)}
	}
	return nil
}
