package types

import (
	"context"
)

type StatusType int32

const (
	Pending   StatusType = 0
	Running   StatusType = 1
	Completed StatusType = 2
	Failed    StatusType = 3
)

func (s StatusType) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

type Context interface {
	context.Context

	GetRunID() string
}
