package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sewahub/sewahub_be/internal/models"
	"github.com/sewahub/sewahub_be/internal/repository"
)

// Directory resolves conversation identity and authorization: which
// conversation belongs to a pair of users or to a booking, and who is
// allowed inside it.
type Directory struct {
	convs    repository.ConversationRepository
	msgs     repository.MessageRepository
	bookings repository.BookingRepository
}

func NewDirectory(convs repository.ConversationRepository, msgs repository.MessageRepository, bookings repository.BookingRepository) *Directory {
	return &Directory{convs: convs, msgs: msgs, bookings: bookings}
}

// FindOrCreateDirect resolves the direct conversation between two users,
// creating it when absent. Idempotent on the sorted pair: a concurrent
// caller that loses the insert race converges on the winner's row via the
// unique pair key.
func (d *Directory) FindOrCreateDirect(ctx context.Context, userA, userB uuid.UUID, metadata map[string]interface{}) (*models.Conversation, error) {
	if userA == userB {
		return nil, invalidf("cannot start a conversation with yourself")
	}

	key := DirectPairKey(userA, userB)
	if conv, err := d.convs.FindByPairKey(ctx, key); err == nil {
		if !conv.IsActive {
			if err := d.convs.Reactivate(ctx, conv.ID); err != nil {
				return nil, fmt.Errorf("reactivate conversation: %w", err)
			}
			conv.IsActive = true
		}
		return conv, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup conversation: %w", err)
	}

	lo, hi := SortPair(userA, userB)
	conv := &models.Conversation{
		ParticipantA: lo,
		ParticipantB: hi,
		Type:         models.ConversationDirect,
		PairKey:      key,
		Metadata:     datatypes.JSONMap(metadata),
		IsActive:     true,
	}
	if err := d.convs.Create(ctx, conv); err != nil {
		// lost the creation race, the sibling row already exists
		if existing, lookupErr := d.convs.FindByPairKey(ctx, key); lookupErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// CreateForBooking opens the renter/owner conversation for a booking and
// seeds it with one system message carrying the booking reference. Only the
// booking's renter or owner may open it, checked before anything is written.
// Calling it again for the same booking returns the existing conversation.
func (d *Directory) CreateForBooking(ctx context.Context, bookingID, userID uuid.UUID) (*models.Conversation, error) {
	booking, err := d.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("booking %s", bookingID)
		}
		return nil, fmt.Errorf("lookup booking: %w", err)
	}
	if booking.RenterID == booking.OwnerID {
		return nil, invalidf("booking renter and owner are the same user")
	}
	if booking.RenterID != userID && booking.OwnerID != userID {
		return nil, unauthorizedf("user %s is not part of booking %s", userID, bookingID)
	}

	key := BookingPairKey(bookingID)
	if conv, err := d.convs.FindByPairKey(ctx, key); err == nil {
		return conv, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup conversation: %w", err)
	}

	lo, hi := SortPair(booking.RenterID, booking.OwnerID)
	conv := &models.Conversation{
		ParticipantA: lo,
		ParticipantB: hi,
		Type:         models.ConversationBooking,
		PairKey:      key,
		Metadata: datatypes.JSONMap{
			"booking_id": booking.ID.String(),
			"listing_id": booking.ListingID.String(),
		},
		IsActive: true,
	}
	if err := d.convs.Create(ctx, conv); err != nil {
		if existing, lookupErr := d.convs.FindByPairKey(ctx, key); lookupErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	// seed system message; the renter is the nominal sender so the owner
	// picks it up as unread
	seed := models.Message{
		ConversationID: conv.ID,
		SenderID:       booking.RenterID,
		ReceiverID:     booking.OwnerID,
		Type:           models.MessageSystem,
		Content:        fmt.Sprintf("Conversation opened for booking %s", booking.Reference),
	}
	if err := d.msgs.Create(ctx, &seed); err != nil {
		log.Println("Error seeding booking conversation message:", err)
		return conv, nil
	}
	if err := d.convs.UpdateLastMessage(ctx, conv.ID, &seed); err != nil {
		log.Println("Error updating conversation pointer:", err)
	}
	return conv, nil
}

// Get loads a conversation, mapping missing rows to ErrNotFound.
func (d *Directory) Get(ctx context.Context, convID uuid.UUID) (*models.Conversation, error) {
	conv, err := d.convs.FindByID(ctx, convID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("conversation %s", convID)
		}
		return nil, fmt.Errorf("lookup conversation: %w", err)
	}
	return conv, nil
}

// Authorize reports whether userID may act inside the conversation: they
// must be a participant and the conversation must still be active.
func (d *Directory) Authorize(ctx context.Context, convID, userID uuid.UUID) (bool, error) {
	conv, err := d.Get(ctx, convID)
	if err != nil {
		return false, err
	}
	return conv.IsActive && conv.HasParticipant(userID), nil
}

// List returns the user's conversations plus the total for paging.
func (d *Directory) List(ctx context.Context, userID uuid.UUID, f repository.ConversationFilter) ([]models.Conversation, int64, error) {
	return d.convs.ListByUser(ctx, userID, f)
}

// Archive hides the conversation from userID's inbox only. Idempotent.
func (d *Directory) Archive(ctx context.Context, convID, userID uuid.UUID) error {
	ok, err := d.Authorize(ctx, convID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return unauthorizedf("user %s is not a participant", userID)
	}

	if _, err := d.convs.FindArchive(ctx, convID, userID); err == nil {
		return nil // already archived
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("lookup archive: %w", err)
	}

	return d.convs.CreateArchive(ctx, &models.ConversationArchive{
		ConversationID: convID,
		UserID:         userID,
		ArchivedAt:     time.Now(),
	})
}

// Unarchive restores the conversation in userID's inbox. Idempotent.
func (d *Directory) Unarchive(ctx context.Context, convID, userID uuid.UUID) error {
	ok, err := d.Authorize(ctx, convID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return unauthorizedf("user %s is not a participant", userID)
	}
	return d.convs.DeleteArchive(ctx, convID, userID)
}

// Deactivate soft-deletes the conversation for both participants.
func (d *Directory) Deactivate(ctx context.Context, convID, userID uuid.UUID) error {
	conv, err := d.Get(ctx, convID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return unauthorizedf("user %s is not a participant", userID)
	}
	return d.convs.Deactivate(ctx, convID)
}
