package note

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
)

const defaultImageBaseURL = "https://credora.io/notes"

// metadataAttribute matches the off-chain marketplace attribute schema.
// Field order is part of the compatibility contract.
type metadataAttribute struct {
	TraitType   string `json:"trait_type"`
	Value       string `json:"value"`
	DisplayType string `json:"display_type,omitempty"`
}

type noteMetadata struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Image       string              `json:"image"`
	Attributes  []metadataAttribute `json:"attributes"`
}

// TokenURI returns the note's metadata document as a base64 data URI. The
// document is regenerated from current storage on every call; nothing is
// cached. All numeric attributes are rendered as base-10 decimal strings of
// the raw 18-decimal on-chain units.
func (e *Engine) TokenURI(tokenID uint64) (string, error) {
	data, err := e.load(tokenID)
	if err != nil {
		return "", err
	}
	balance, err := e.state.NoteBalance(tokenID)
	if err != nil {
		return "", err
	}
	return buildTokenURI(tokenID, data, balance, e.imageBase()), nil
}

func (e *Engine) imageBase() string {
	if e == nil || e.imageBaseURL == "" {
		return defaultImageBaseURL
	}
	return e.imageBaseURL
}

func buildTokenURI(tokenID uint64, data *CreditNoteData, balance *big.Int, imageBase string) string {
	doc := noteMetadata{
		Name:        fmt.Sprintf("Credora Credit Note #%d", tokenID),
		Description: "A collateralized credit note backed by escrowed CRD share tokens.",
		Image:       fmt.Sprintf("%s/%d.png", imageBase, tokenID),
		Attributes: []metadataAttribute{
			{TraitType: "Borrower", Value: data.Borrower.Hex()},
			{TraitType: "Principal Amount", Value: decimalString(data.Principal)},
			{TraitType: "Advance Amount", Value: decimalString(data.Advance)},
			{TraitType: "Interest Rate", Value: strconv.FormatUint(data.InterestRateBps, 10), DisplayType: "percentage"},
			{TraitType: "Maturity", Value: strconv.FormatInt(data.Maturity, 10), DisplayType: "date"},
			{TraitType: "Created At", Value: strconv.FormatInt(data.CreatedAt, 10), DisplayType: "date"},
			{TraitType: "Total Paid", Value: decimalString(data.TotalPaid)},
			{TraitType: "Status", Value: data.Status.String()},
			{TraitType: "CRD Balance", Value: decimalString(balance)},
		},
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		// The document is built from plain strings; marshalling cannot
		// fail for well-formed records.
		panic(err)
	}
	return "data:application/json;base64," + base64.StdEncoding.EncodeToString(encoded)
}

func decimalString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
