// Package authorship binds posts to their author's node identity: content
// is signed by the creating session's node, and any other session can later
// ask its own node to check the signature against the recorded pubkey.
package authorship

import (
	"context"
	"fmt"

	"boltboard/internal/common"
	"boltboard/internal/lightning"
	"boltboard/internal/logging"
	"boltboard/internal/server/nodes"
	"boltboard/internal/server/posts"
)

type Service struct {
	nodes  *nodes.Manager
	posts  *posts.Service
	logger logging.Logger
}

func NewService(nodeManager *nodes.Manager, postService *posts.Service, logger logging.Logger) *Service {
	return &Service{
		nodes:  nodeManager,
		posts:  postService,
		logger: logger.With("component", "authorship"),
	}
}

// Sign signs post content with the creating session's node at creation
// time.
func (s *Service) Sign(ctx context.Context, conn lightning.Client, content string) (string, error) {
	sig, err := conn.SignMessage(ctx, []byte(content))
	if err != nil {
		return "", fmt.Errorf("signing content: %w", err)
	}
	return sig, nil
}

// Verify asks the verifying session's node to validate the post's
// signature. A session can never vouch for its own posts, and the signer
// reported by the node must be the pubkey recorded on the post.
func (s *Service) Verify(ctx context.Context, postID int64, token string) (*posts.Post, error) {
	session, err := s.nodes.Session(token)
	if err != nil {
		return nil, err
	}

	post, err := s.posts.Get(postID)
	if err != nil {
		return nil, err
	}

	if session.Pubkey == post.Pubkey {
		return nil, common.ErrSelfVerify
	}

	valid, signer, err := session.Conn().VerifyMessage(ctx, []byte(post.Content), post.Signature)
	if err != nil {
		return nil, fmt.Errorf("verifying signature: %w", err)
	}
	if !valid || signer != post.Pubkey {
		return nil, common.ErrInvalidSignature
	}

	updated, err := s.posts.MarkVerified(postID)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "post verified", "post", postID, "verifier", session.Pubkey)
	return updated, nil
}
