package repository

import (
	"context"
	"errors"
	"time"

	"kobpay/internal/model"

	"gorm.io/gorm"
)

var (
	ErrCardNotFound       = errors.New("会员卡不存在")
	ErrCardStatusInvalid  = errors.New("卡状态转换不合法")
	ErrCardAlreadyCharged = errors.New("月费已收取，请勿重复扣款")
)

type CardRepository struct {
	db *gorm.DB
}

func NewCardRepository(db *gorm.DB) *CardRepository {
	return &CardRepository{db: db}
}

func (r *CardRepository) Create(ctx context.Context, card *model.Card) error {
	return r.db.WithContext(ctx).Create(card).Error
}

func (r *CardRepository) GetByCardNo(ctx context.Context, cardNo string) (*model.Card, error) {
	var card model.Card
	err := r.db.WithContext(ctx).Where("card_no = ?", cardNo).First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &card, nil
}

// GetChargeableCards 查询可以收取月费的卡：
// 已激活、未收费、且激活时间早于 activatedBefore（免收期之外）
func (r *CardRepository) GetChargeableCards(ctx context.Context, activatedBefore time.Time, limit int) ([]*model.Card, error) {
	var cards []*model.Card
	err := r.db.WithContext(ctx).
		Where("status = ? AND membership_fee_charged = ? AND activated_at IS NOT NULL AND activated_at < ?",
			model.CardStatusActive, false, activatedBefore).
		Order("activated_at ASC").
		Limit(limit).
		Find(&cards).Error
	return cards, err
}

// MarkFeeCharged 标记月费已收取
// WHERE 条件带上未收费状态，和扣款在同一事务内执行，重复扫描不会重复扣
func (r *CardRepository) MarkFeeCharged(ctx context.Context, tx *gorm.DB, cardID int64) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Card{}).
		Where("id = ? AND membership_fee_charged = ?", cardID, false).
		Update("membership_fee_charged", true)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrCardAlreadyCharged
	}

	return nil
}

// UpdateStatus 按状态转换表推进卡状态，发卡方回调同步时调用
// 激活时顺带记录激活时间，月费免收期从这里开始计
func (r *CardRepository) UpdateStatus(ctx context.Context, cardNo string, fromStatus, toStatus string) error {
	if !model.CardCanTransitionTo(fromStatus, toStatus) {
		return ErrCardStatusInvalid
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}

	if toStatus == model.CardStatusActive && fromStatus == model.CardStatusInactive {
		now := time.Now()
		updates["activated_at"] = &now
	}

	result := r.db.WithContext(ctx).
		Model(&model.Card{}).
		Where("card_no = ? AND status = ?", cardNo, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrCardStatusInvalid
	}

	return nil
}
