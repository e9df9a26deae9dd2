package http

import (
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/egreed-contracts/internal/model"
	"github.com/nurpe/egreed-contracts/internal/payment"
)

type clientResponse struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
	Phone    *string   `json:"phone,omitempty"`
	Company  *string   `json:"company,omitempty"`
}

type contractResponse struct {
	ID                 uuid.UUID            `json:"id"`
	ContractRef        string               `json:"contract_ref"`
	Title              string               `json:"title"`
	Description        *string              `json:"description,omitempty"`
	Amount             float64              `json:"amount"`
	Currency           string               `json:"currency"`
	StartDate          *time.Time           `json:"start_date,omitempty"`
	EndDate            *time.Time           `json:"end_date,omitempty"`
	DeveloperID        uuid.UUID            `json:"developer_id"`
	ClientID           uuid.UUID            `json:"client_id"`
	Client             *clientResponse      `json:"client,omitempty"`
	ClientSignature    *string              `json:"client_signature,omitempty"`
	ClientSignedAt     *time.Time           `json:"client_signed_at,omitempty"`
	DeveloperSignature *string              `json:"developer_signature,omitempty"`
	DeveloperSignedAt  *time.Time           `json:"developer_signed_at,omitempty"`
	SignedAt           *time.Time           `json:"signed_at,omitempty"`
	Status             model.ContractStatus `json:"status"`
	PaymentStatus      model.PaymentStatus  `json:"payment_status"`
	PaymentMethod      *model.PaymentMethod `json:"payment_method,omitempty"`
	TransactionID      *string              `json:"transaction_id,omitempty"`
	PaymentDate        *time.Time           `json:"payment_date,omitempty"`
	Version            int                  `json:"version"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// publicContractResponse is what a client sees before signing: no signature
// images, no internal ids.
type publicContractResponse struct {
	ContractRef     string               `json:"contract_ref"`
	Title           string               `json:"title"`
	Description     *string              `json:"description,omitempty"`
	Amount          float64              `json:"amount"`
	Currency        string               `json:"currency"`
	StartDate       *time.Time           `json:"start_date,omitempty"`
	EndDate         *time.Time           `json:"end_date,omitempty"`
	ClientName      string               `json:"client_name,omitempty"`
	ClientSigned    bool                 `json:"client_signed"`
	DeveloperSigned bool                 `json:"developer_signed"`
	Status          model.ContractStatus `json:"status"`
	PaymentStatus   model.PaymentStatus  `json:"payment_status"`
}

type auditResponse struct {
	ID        uuid.UUID      `json:"id"`
	Action    string         `json:"action"`
	ClientID  *uuid.UUID     `json:"client_id,omitempty"`
	UserID    *uuid.UUID     `json:"user_id,omitempty"`
	IPAddress *string        `json:"ip_address,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type paymentResponse struct {
	ID             uuid.UUID           `json:"id"`
	Provider       string              `json:"provider"`
	Method         model.PaymentMethod `json:"method"`
	TransactionRef string              `json:"transaction_ref"`
	ExternalID     *string             `json:"external_id,omitempty"`
	Amount         float64             `json:"amount"`
	AmountPaid     float64             `json:"amount_paid"`
	Currency       string              `json:"currency"`
	Status         model.PaymentStatus `json:"status"`
	CreatedAt      time.Time           `json:"created_at"`
}

type initiationResponse struct {
	Kind           payment.ResultKind  `json:"kind"`
	RedirectURL    string              `json:"redirect_url,omitempty"`
	ClientSecret   string              `json:"client_secret,omitempty"`
	Message        string              `json:"message,omitempty"`
	TransactionRef string              `json:"transaction_ref"`
	Method         model.PaymentMethod `json:"method"`
	Amount         float64             `json:"amount"`
	Currency       string              `json:"currency"`
}

func toClientResponse(client *model.Client) clientResponse {
	return clientResponse{
		ID:       client.ID,
		FullName: client.FullName,
		Email:    client.Email,
		Phone:    client.Phone,
		Company:  client.Company,
	}
}

func toContractResponse(contract *model.Contract) contractResponse {
	resp := contractResponse{
		ID:                 contract.ID,
		ContractRef:        contract.ContractRef,
		Title:              contract.Title,
		Description:        contract.Description,
		Amount:             contract.Amount,
		Currency:           contract.Currency,
		StartDate:          contract.StartDate,
		EndDate:            contract.EndDate,
		DeveloperID:        contract.DeveloperID,
		ClientID:           contract.ClientID,
		ClientSignature:    contract.ClientSignature,
		ClientSignedAt:     contract.ClientSignedAt,
		DeveloperSignature: contract.DeveloperSignature,
		DeveloperSignedAt:  contract.DeveloperSignedAt,
		SignedAt:           contract.SignedAt,
		Status:             contract.Status,
		PaymentStatus:      contract.PaymentStatus,
		PaymentMethod:      contract.PaymentMethod,
		TransactionID:      contract.TransactionID,
		PaymentDate:        contract.PaymentDate,
		Version:            contract.Version,
		CreatedAt:          contract.CreatedAt,
		UpdatedAt:          contract.UpdatedAt,
	}
	if contract.Client != nil {
		client := toClientResponse(contract.Client)
		resp.Client = &client
	}
	return resp
}

func toPublicContractResponse(contract *model.Contract) publicContractResponse {
	resp := publicContractResponse{
		ContractRef:     contract.ContractRef,
		Title:           contract.Title,
		Description:     contract.Description,
		Amount:          contract.Amount,
		Currency:        contract.Currency,
		StartDate:       contract.StartDate,
		EndDate:         contract.EndDate,
		ClientSigned:    contract.ClientSigned(),
		DeveloperSigned: contract.DeveloperSigned(),
		Status:          contract.Status,
		PaymentStatus:   contract.PaymentStatus,
	}
	if contract.Client != nil {
		resp.ClientName = contract.Client.FullName
	}
	return resp
}

func toAuditResponse(entry model.SignatureAudit) auditResponse {
	return auditResponse{
		ID:        entry.ID,
		Action:    entry.Action,
		ClientID:  entry.ClientID,
		UserID:    entry.UserID,
		IPAddress: entry.IPAddress,
		Metadata:  entry.Metadata,
		CreatedAt: entry.CreatedAt,
	}
}

func toPaymentResponse(p model.Payment) paymentResponse {
	return paymentResponse{
		ID:             p.ID,
		Provider:       p.Provider,
		Method:         p.Method,
		TransactionRef: p.TransactionRef,
		ExternalID:     p.ExternalID,
		Amount:         p.Amount,
		AmountPaid:     p.AmountPaid,
		Currency:       p.Currency,
		Status:         p.Status,
		CreatedAt:      p.CreatedAt,
	}
}

func toInitiationResponse(result *payment.InitiationResult) initiationResponse {
	return initiationResponse{
		Kind:           result.Kind,
		RedirectURL:    result.RedirectURL,
		ClientSecret:   result.ContinuationToken,
		Message:        result.PendingMessage,
		TransactionRef: result.TransactionRef,
		Method:         result.Method,
		Amount:         result.Amount,
		Currency:       result.Currency,
	}
}
