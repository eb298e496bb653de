package service

import (
	"context"
	"log"

	"kobpay/internal/model"
	"kobpay/internal/repository"

	"gorm.io/gorm"
)

// CardService 会员卡状态同步服务
// 发卡、激活、冻结都由发卡方驱动，本系统只把结果落库，
// 供月费定时任务扫描使用；卡状态不参与任何资金校验
type CardService struct {
	cardRepo *repository.CardRepository
}

func NewCardService(db *gorm.DB) *CardService {
	return &CardService{
		cardRepo: repository.NewCardRepository(db),
	}
}

// IssueCard 记录一张新发的卡，初始状态 INACTIVE
func (s *CardService) IssueCard(ctx context.Context, userID int64, cardNo string) (*model.Card, error) {
	card := &model.Card{
		UserID: userID,
		CardNo: cardNo,
		Status: model.CardStatusInactive,
	}
	if err := s.cardRepo.Create(ctx, card); err != nil {
		return nil, err
	}

	log.Printf("会员卡已登记: cardNo=%s, userID=%d", cardNo, userID)
	return card, nil
}

// SyncStatus 同步发卡方推送的卡状态，非法转换直接拒绝
func (s *CardService) SyncStatus(ctx context.Context, cardNo string, toStatus string) error {
	card, err := s.cardRepo.GetByCardNo(ctx, cardNo)
	if err != nil {
		return err
	}

	if err := s.cardRepo.UpdateStatus(ctx, cardNo, card.Status, toStatus); err != nil {
		return err
	}

	log.Printf("会员卡状态已同步: cardNo=%s, %s -> %s", cardNo, card.Status, toStatus)
	return nil
}
