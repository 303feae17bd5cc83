package render

import (
	"context"
	"strconv"

	"github.com/solvect/activityfeed/internal/models"
)

// userGetter is the slice of the user repository the resolver needs
type userGetter interface {
	GetUserByID(id uint) (*models.User, error)
}

// UserResolver resolves "user" about references against the user store
func UserResolver(repo userGetter) Resolver {
	return func(_ context.Context, id string) (Target, error) {
		userID, err := strconv.ParseUint(id, 10, 32)
		if err != nil {
			return nil, err
		}
		user, err := repo.GetUserByID(uint(userID))
		if err != nil {
			return nil, err
		}
		return user, nil
	}
}

// postGetter is the slice of the post repository the resolver needs
type postGetter interface {
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
}

// PostResolver resolves "post" about references against the post store
func PostResolver(repo postGetter) Resolver {
	return func(ctx context.Context, id string) (Target, error) {
		post, err := repo.GetPostByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return post, nil
	}
}
