package user

import "errors"

// Role は認証基盤から渡される利用者の役割
type Role string

const (
	RoleOrganizer Role = "organizer"
	RoleAttendee  Role = "attendee"
)

var (
	ErrUnauthenticated = errors.New("認証情報がありません")
	ErrInvalidRole     = errors.New("不正なロールです")
	ErrOrganizerOnly   = errors.New("主催者のみ実行できます")
)

// Principal は検証済みの利用者情報。中身は認証基盤を信頼する
type Principal struct {
	ID   string
	Role Role
}

// NewPrincipal は Principal を作成する
func NewPrincipal(id string, role Role) (*Principal, error) {
	if id == "" {
		return nil, ErrUnauthenticated
	}
	switch role {
	case RoleOrganizer, RoleAttendee:
	default:
		return nil, ErrInvalidRole
	}
	return &Principal{ID: id, Role: role}, nil
}

func (p *Principal) IsOrganizer() bool {
	return p != nil && p.Role == RoleOrganizer
}
