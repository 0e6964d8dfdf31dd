package handler

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/ogurasousui/codex-hr-lifecycle/internal/core/actor"
)

// 操作主体はメタデータで受け取ります。認証は上流で行われている前提です。
const (
	HeaderActorID         = "x-actor-id"
	HeaderActorEmployeeID = "x-actor-employee-id"
	HeaderActorRoles      = "x-actor-roles"
)

func actorFromContext(ctx context.Context) (actor.Actor, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return actor.Actor{}, nil
	}

	a := actor.Actor{
		ID:         firstValue(md, HeaderActorID),
		EmployeeID: firstValue(md, HeaderActorEmployeeID),
	}

	for _, raw := range md.Get(HeaderActorRoles) {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			role, ok := actor.ParseRole(part)
			if !ok {
				return actor.Actor{}, status.Error(codes.InvalidArgument, fmt.Sprintf("%s: unknown role %q", HeaderActorRoles, strings.TrimSpace(part)))
			}
			if !a.Has(role) {
				a.Roles = append(a.Roles, role)
			}
		}
	}

	if a.ID == "" {
		a.ID = a.EmployeeID
	}
	return a, nil
}

func firstValue(md metadata.MD, key string) string {
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

// ActorMetadata は actor をクライアント側の送信メタデータに変換します。
func ActorMetadata(ctx context.Context, a actor.Actor) context.Context {
	roles := make([]string, 0, len(a.Roles))
	for _, r := range a.Roles {
		roles = append(roles, string(r))
	}
	return metadata.AppendToOutgoingContext(ctx,
		HeaderActorID, a.ID,
		HeaderActorEmployeeID, a.EmployeeID,
		HeaderActorRoles, strings.Join(roles, ","),
	)
}
