package web

import (
	"fmt"
	"net/http"

	"boltboard/internal/common"
	"boltboard/internal/server/posts"
)

func (s *Server) token(r *http.Request) string {
	return r.Header.Get(common.TokenHeaderName)
}

type connectRequest struct {
	Host     string `json:"host"`
	Cert     string `json:"cert"`
	Macaroon string `json:"macaroon"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := parseJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Host == "" || req.Cert == "" || req.Macaroon == "" {
		writeError(w, fmt.Errorf("%w: host, cert and macaroon are required", common.ErrValidation))
		return
	}

	s.logger.Info(r.Context(), "connect request", "host", req.Host)

	session, err := s.nodes.Connect(r.Context(), req.Host, req.Cert, req.Macaroon, "")
	if err != nil {
		s.logger.Error(r.Context(), "connect failed", "host", req.Host, "error", err.Error())
		writeError(w, err)
		return
	}

	err = s.posts.AddNode(&posts.NodeEntry{
		Token:    session.Token,
		Host:     req.Host,
		Cert:     req.Cert,
		Macaroon: req.Macaroon,
		Pubkey:   session.Pubkey,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token":  session.Token,
		"pubkey": session.Pubkey,
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	session, err := s.nodes.Session(s.token(r))
	if err != nil {
		writeError(w, err)
		return
	}

	info, err := session.Conn().GetInfo(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	balance, err := session.Conn().ChannelBalance(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alias":   info.Alias,
		"balance": balance,
		"pubkey":  session.Pubkey,
	})
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.posts.List())
}

type createPostRequest struct {
	Username string `json:"username"`
	Title    string `json:"title"`
	Content  string `json:"content"`
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	session, err := s.nodes.Session(s.token(r))
	if err != nil {
		writeError(w, err)
		return
	}

	var req createPostRequest
	if err := parseJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Title == "" || req.Content == "" {
		writeError(w, fmt.Errorf("%w: title and content are required", common.ErrValidation))
		return
	}

	signature, err := s.verifier.Sign(r.Context(), session.Conn(), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	post, err := s.posts.Create(req.Username, req.Title, req.Content, signature, session.Pubkey)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) handleInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	invoice, err := s.gate.RequestInvoice(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, invoice)
}

type upvoteRequest struct {
	Hash string `json:"hash"`
}

func (s *Server) handleUpvote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req upvoteRequest
	if err := parseJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	post, err := s.gate.SettleByHash(r.Context(), id, req.Hash)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	post, err := s.verifier.Verify(r.Context(), id, s.token(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, post)
}
