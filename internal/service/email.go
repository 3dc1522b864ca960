// Package service 实现邮箱编排门面，是 HTTP 层之下唯一的入口。
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mailbridge/backend/internal/domain"
	"mailbridge/backend/internal/extractor"
	"mailbridge/backend/internal/monitoring"
	"mailbridge/backend/internal/provider"
	"mailbridge/backend/internal/storage"
)

var (
	// ErrAddressNotFound 地址从未申请过或已被删除。
	ErrAddressNotFound = errors.New("邮箱不存在")

	// ErrWaitTimeout 轮询窗口内没有等到验证码。
	ErrWaitTimeout = errors.New("超时未收到验证码")
)

// EmailService 邮箱编排服务。
//
// 每个操作是一条顺序链：查记录、派发给所属适配器、透传结果。
// 除选择器在申请邮箱时的跨服务商回退外不做任何重试。
type EmailService struct {
	registry     *provider.Registry
	store        storage.MailboxStore
	metrics      *monitoring.Metrics // 可为 nil（测试场景）
	logger       *zap.Logger
	pollInterval time.Duration
	pollAttempts int
}

// NewEmailService 创建邮箱服务。
func NewEmailService(registry *provider.Registry, store storage.MailboxStore, metrics *monitoring.Metrics, logger *zap.Logger, pollInterval time.Duration, pollAttempts int) *EmailService {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if pollAttempts <= 0 {
		pollAttempts = 30
	}
	return &EmailService{
		registry:     registry,
		store:        store,
		metrics:      metrics,
		logger:       logger,
		pollInterval: pollInterval,
		pollAttempts: pollAttempts,
	}
}

// GenerateResult 申请邮箱的对外结果。
type GenerateResult struct {
	Address    string
	Provider   domain.ProviderName
	WebViewURL string
	Info       string
}

// GenerateEmail 申请一个新邮箱并持久化记录。
//
// providerName 为空时由选择器按优先级回退；指定时只用该服务商。
func (s *EmailService) GenerateEmail(ctx context.Context, providerName string) (*GenerateResult, error) {
	adapter, result, err := s.registry.SelectAndGenerate(ctx, domain.ProviderName(providerName))
	if err != nil {
		s.logger.Error("申请邮箱失败",
			zap.String("provider", providerName),
			zap.Error(err),
		)
		return nil, err
	}

	rec := &domain.MailboxRecord{
		Address:     result.Address,
		Provider:    adapter.Name(),
		Credentials: result.Credentials,
		CreatedAt:   time.Now().UTC(),
		WebViewURL:  result.WebViewURL,
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("保存邮箱记录失败: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordMailboxProvisioned(string(adapter.Name()))
	}
	s.logger.Info("邮箱申请成功",
		zap.String("address", result.Address),
		zap.String("provider", string(adapter.Name())),
	)

	return &GenerateResult{
		Address:    result.Address,
		Provider:   adapter.Name(),
		WebViewURL: result.WebViewURL,
		Info:       result.Info,
	}, nil
}

// GetMessages 拉取邮箱的邮件列表，顺序沿用服务商返回。
func (s *EmailService) GetMessages(ctx context.Context, address string) ([]domain.NormalizedMessage, error) {
	rec, adapter, err := s.dispatch(ctx, address)
	if err != nil {
		return nil, err
	}
	messages, err := adapter.ListMessages(ctx, rec)
	s.recordProviderOp(adapter.Name(), "list", err)
	return messages, err
}

// GetMessageBody 拉取单封邮件正文。
func (s *EmailService) GetMessageBody(ctx context.Context, address, messageID string) (*domain.NormalizedMessageBody, error) {
	rec, adapter, err := s.dispatch(ctx, address)
	if err != nil {
		return nil, err
	}
	body, err := adapter.GetMessageBody(ctx, rec, messageID)
	s.recordProviderOp(adapter.Name(), "body", err)
	return body, err
}

// ExtractCode 对邮件正文执行验证码提取，textBody 优先。
func (s *EmailService) ExtractCode(body *domain.NormalizedMessageBody) string {
	text := body.TextBody
	if text == "" {
		text = body.Body
	}
	code := extractor.Extract(text)
	if s.metrics != nil {
		if code != "" {
			s.metrics.RecordCodeExtracted()
		} else {
			s.metrics.RecordCodeMissed()
		}
	}
	return code
}

// WaitForCode 服务端轮询直到收到可提取验证码的邮件。
//
// 固定间隔轮询，单封邮件正文拉取失败只记日志继续等下一轮；
// 窗口耗尽返回 ErrWaitTimeout。
func (s *EmailService) WaitForCode(ctx context.Context, address string) (string, *domain.NormalizedMessageBody, error) {
	for attempt := 0; attempt < s.pollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", nil, ctx.Err()
			case <-time.After(s.pollInterval):
			}
		}

		messages, err := s.GetMessages(ctx, address)
		if err != nil {
			if errors.Is(err, ErrAddressNotFound) {
				return "", nil, err
			}
			s.logger.Warn("轮询邮件列表失败", zap.String("address", address), zap.Error(err))
			continue
		}

		for _, msg := range messages {
			// 部分服务商把验证码直接放在主题里
			if code := extractor.Extract(msg.Subject); code != "" {
				return code, &domain.NormalizedMessageBody{NormalizedMessage: msg}, nil
			}

			body, err := s.GetMessageBody(ctx, address, msg.ID)
			if err != nil {
				s.logger.Warn("拉取邮件正文失败",
					zap.String("address", address),
					zap.String("messageId", msg.ID),
					zap.Error(err),
				)
				continue
			}
			if code := s.ExtractCode(body); code != "" {
				return code, body, nil
			}
		}
	}
	return "", nil, ErrWaitTimeout
}

// Delete 删除邮箱记录，返回此前是否存在。
func (s *EmailService) Delete(ctx context.Context, address string) (bool, error) {
	existed, err := s.store.Delete(ctx, address)
	if err == nil && existed && s.metrics != nil {
		s.metrics.RecordMailboxDeleted()
	}
	return existed, err
}

// ListAll 返回全部邮箱记录，管理接口用，非热路径。
func (s *EmailService) ListAll(ctx context.Context) ([]*domain.MailboxRecord, error) {
	return s.store.List(ctx)
}

// ClearAll 清空全部邮箱记录。
func (s *EmailService) ClearAll(ctx context.Context) (int, error) {
	return s.store.Clear(ctx)
}

// Services 返回全部服务商的描述与可用性。
func (s *EmailService) Services() []provider.Info {
	infos := s.registry.List()
	if s.metrics != nil {
		n := 0
		for _, info := range infos {
			if !info.Available {
				n++
			}
		}
		s.metrics.SetProvidersUnavailable(n)
	}
	return infos
}

// dispatch 读取记录并解析所属适配器。
func (s *EmailService) dispatch(ctx context.Context, address string) (*domain.MailboxRecord, provider.Adapter, error) {
	rec, err := s.store.Get(ctx, address)
	if errors.Is(err, storage.ErrRecordNotFound) {
		return nil, nil, ErrAddressNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	adapter, ok := s.registry.Get(rec.Provider)
	if !ok {
		return nil, nil, fmt.Errorf("邮箱记录指向未注册的服务商: %s", rec.Provider)
	}
	return rec, adapter, nil
}

func (s *EmailService) recordProviderOp(name domain.ProviderName, op string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.RecordProviderRequest(string(name), op, outcome)
}
