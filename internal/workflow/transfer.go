package workflow

import "fmt"

// TransferMode selects whether a transferred ticket leaves its origin.
type TransferMode string

const (
	// TransferOnly moves the ticket; the originating service loses it.
	TransferOnly TransferMode = "transfer_only"
	// TransferAndKeep duplicates the ticket into the target service and
	// keeps the original where it is.
	TransferAndKeep TransferMode = "transfer_and_keep"
)

// ParseTransferMode validates a raw mode string.
func ParseTransferMode(raw string) (TransferMode, error) {
	switch TransferMode(raw) {
	case TransferOnly, TransferAndKeep:
		return TransferMode(raw), nil
	}
	return "", newError(KindInvalidTransfer, "mode de transfert inconnu: %q", raw)
}

// CheckTransfer validates moving or duplicating t to targetServiceID.
func CheckTransfer(t TicketState, targetServiceID int64, mode TransferMode, actor Actor) error {
	if _, err := ParseTransferMode(string(mode)); err != nil {
		return err
	}
	if !HasServicePermission(actor.Permissions, t.ServiceName) {
		return newError(KindForbidden, "permission %s requise", ServicePermission(t.ServiceName))
	}
	if t.Status == StatusClosed {
		return newError(KindInvalidTransfer, "un bon fermé ne peut pas être transféré")
	}
	if targetServiceID <= 0 {
		return newError(KindInvalidTransfer, "service cible requis")
	}
	if targetServiceID == t.ServiceIntervenantID {
		return newError(KindInvalidTransfer, "le bon est déjà affecté à ce service")
	}
	return nil
}

// TransferMessage is the confirmation shown after a successful transfer.
func TransferMessage(mode TransferMode, targetName string) string {
	if mode == TransferAndKeep {
		return fmt.Sprintf("Le bon a été dupliqué vers le service %s, l'original est conservé.", targetName)
	}
	return fmt.Sprintf("Le bon a été transféré vers le service %s.", targetName)
}
