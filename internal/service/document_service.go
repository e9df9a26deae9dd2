package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/egreed-contracts/internal/model"
)

type PDFGenerator interface {
	Generate(contract model.Contract) ([]byte, error)
}

type ExcelGenerator interface {
	Generate(contracts []model.Contract, generatedAt time.Time) ([]byte, error)
}

type DocumentService struct {
	contracts *ContractService
	pdf       PDFGenerator
	excel     ExcelGenerator
}

type DocumentResult struct {
	FileName string
	Content  []byte
}

func NewDocumentService(contracts *ContractService, pdf PDFGenerator, excel ExcelGenerator) *DocumentService {
	return &DocumentService{
		contracts: contracts,
		pdf:       pdf,
		excel:     excel,
	}
}

func (s *DocumentService) RenderContractPDF(ctx context.Context, ref string, principal model.Principal) (*DocumentResult, error) {
	if !principal.CanManageContracts() {
		return nil, ErrPermissionDenied
	}
	contract, err := s.contracts.GetContract(ctx, ref)
	if err != nil {
		return nil, err
	}

	content, err := s.pdf.Generate(*contract)
	if err != nil {
		return nil, err
	}
	return &DocumentResult{
		FileName: fmt.Sprintf("contract-%s.pdf", sanitizeFileName(contract.ContractRef)),
		Content:  content,
	}, nil
}

func (s *DocumentService) ExportContracts(ctx context.Context, filter model.ContractFilter, principal model.Principal) (*DocumentResult, error) {
	contracts, err := s.contracts.ListContracts(ctx, filter, principal)
	if err != nil {
		return nil, err
	}

	clients := make(map[uuid.UUID]*model.Client)
	for i := range contracts {
		id := contracts[i].ClientID
		client, ok := clients[id]
		if !ok {
			client, err = s.contracts.clients.Get(ctx, id)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
			clients[id] = client
		}
		contracts[i].Client = client
	}

	now := s.contracts.now().UTC()
	content, err := s.excel.Generate(contracts, now)
	if err != nil {
		return nil, err
	}
	return &DocumentResult{
		FileName: s.buildFileName(filter, now),
		Content:  content,
	}, nil
}

func (s *DocumentService) buildFileName(filter model.ContractFilter, at time.Time) string {
	parts := []string{"contracts"}
	if filter.Status != nil {
		parts = append(parts, strings.ToLower(sanitizeFileName(string(*filter.Status))))
	}
	if filter.PaymentStatus != nil {
		parts = append(parts, strings.ToLower(sanitizeFileName(string(*filter.PaymentStatus))))
	}
	parts = append(parts, at.Format("20060102"))
	return strings.Join(parts, "-") + ".xlsx"
}

func sanitizeFileName(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z':
			result = append(result, r)
		case r >= 'A' && r <= 'Z':
			result = append(result, r)
		case r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return strings.Trim(string(result), "-")
}
