package domain

import "github.com/google/uuid"

type UserID = uuid.UUID
type ConfigID = uuid.UUID
type CodeID = uuid.UUID
type SessionID = uuid.UUID
type PolicyID = uuid.UUID
type EventID = uuid.UUID
