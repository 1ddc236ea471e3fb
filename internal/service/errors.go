package service

import "net/http"

// StatusError is a business rule violation with the HTTP status it maps to.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string   { return e.Message }
func (e *StatusError) StatusCode() int { return e.Code }

var (
	ErrAlreadyPending       = &StatusError{Code: http.StatusConflict, Message: "a connection request to this user is already pending"}
	ErrAlreadyConnected     = &StatusError{Code: http.StatusConflict, Message: "already connected to this user"}
	ErrSelfRequest          = &StatusError{Code: http.StatusBadRequest, Message: "cannot connect with yourself"}
	ErrRequestNotFound      = &StatusError{Code: http.StatusNotFound, Message: "connection request not found"}
	ErrConnectionNotFound   = &StatusError{Code: http.StatusNotFound, Message: "connection not found"}
	ErrAnnouncementNotFound = &StatusError{Code: http.StatusNotFound, Message: "announcement not found"}
)
