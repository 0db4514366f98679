package postgres

// Store bundles the chat repositories over one pool so the persistence worker
// and the REST service share the same durable record.
type Store struct {
	*RoomRepository
	*MessageRepository
	*ReadStatusRepository
}

func NewStore(db querier) *Store {
	return &Store{
		RoomRepository:       NewRoomRepository(db),
		MessageRepository:    NewMessageRepository(db),
		ReadStatusRepository: NewReadStatusRepository(db),
	}
}
