package vivid

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vividsync/internal/domains/order"
	"vividsync/pkg/errorutil"
	"vividsync/pkg/logger"
)

// 远端接口路径
const (
	pathGetOrders            = "/getOrders"
	pathGetPendingRetransfer = "/getPendingRetransferOrders"
	pathGetOrder             = "/getOrder"
	pathTransferOrderViaURL  = "/transferOrderViaURL"
)

// recordContainer 列表响应中记录容器的元素名
const recordContainer = "order"

// maxResponseBytes 响应体读取上限，防御异常膨胀的返回
const maxResponseBytes = 8 << 20

// TransferStatus 转移结果三态
type TransferStatus int

const (
	// TransferSucceeded 远端确认成功
	TransferSucceeded TransferStatus = iota
	// TransferFailed 远端明确拒绝
	TransferFailed
	// TransferUnknown 响应无法解析，结果不可知
	TransferUnknown
)

// String 状态字面值（与远端 success 字段对应）
func (s TransferStatus) String() string {
	switch s {
	case TransferSucceeded:
		return "true"
	case TransferFailed:
		return "false"
	default:
		return "unknown"
	}
}

// TransferRequest 转移请求
type TransferRequest struct {
	OrderID    string
	OrderToken string
	URLList    []string
	Source     string // 来源标识（固定溯源元数据）
	SourceURL  string // 首个转移 URL
}

// TransferOutcome 转移结果。此边界之外不抛错：
// 一切失败都折叠为三态之一加错误描述。
type TransferOutcome struct {
	Status  TransferStatus
	Message string
}

// Client Vivid Seats 经纪接口客户端
type Client struct {
	baseURL      string
	apiToken     string
	listClient   *http.Client // 列表拉取
	detailClient *http.Client // 单订单详情（更短超时）
	logger       logger.Logger
}

// NewClient 创建客户端
func NewClient(baseURL, apiToken string, listTimeout, detailTimeout time.Duration, log logger.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiToken:     apiToken,
		listClient:   &http.Client{Timeout: listTimeout},
		detailClient: &http.Client{Timeout: detailTimeout},
		logger:       log,
	}
}

// FetchPendingShipment 拉取待发货订单列表
func (c *Client) FetchPendingShipment(ctx context.Context) ([]order.FieldMap, error) {
	params := url.Values{}
	params.Set("apiToken", c.apiToken)
	params.Set("status", order.StatusPendingShipment)
	return c.fetchList(ctx, pathGetOrders, params)
}

// FetchPendingRetransfer 拉取待再转移订单列表
func (c *Client) FetchPendingRetransfer(ctx context.Context) ([]order.FieldMap, error) {
	params := url.Values{}
	params.Set("apiToken", c.apiToken)
	return c.fetchList(ctx, pathGetPendingRetransfer, params)
}

// FetchOrderDetail 拉取单订单完整字段集
func (c *Client) FetchOrderDetail(ctx context.Context, orderID string) (order.FieldMap, error) {
	params := url.Values{}
	params.Set("apiToken", c.apiToken)
	params.Set("orderId", orderID)

	body, err := c.get(ctx, c.detailClient, pathGetOrder, params)
	if err != nil {
		return nil, err
	}

	rec, err := parseRecord(body)
	if err != nil {
		return nil, errorutil.Parse(fmt.Sprintf("malformed detail response for %s", orderID), err)
	}
	return rec, nil
}

// ExecuteTransfer 提交 URL 转移请求。
// 传输失败、非 2xx、响应畸形都折叠为 TransferUnknown + 描述信息。
func (c *Client) ExecuteTransfer(ctx context.Context, req TransferRequest) TransferOutcome {
	form := url.Values{}
	form.Set("apiToken", c.apiToken)
	form.Set("orderId", req.OrderID)
	form.Set("orderToken", req.OrderToken)
	for _, u := range req.URLList {
		form.Add("transferURLList", u)
	}
	form.Set("transferSource", req.Source)
	form.Set("transferSourceURL", req.SourceURL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+pathTransferOrderViaURL, strings.NewReader(form.Encode()))
	if err != nil {
		return TransferOutcome{Status: TransferUnknown, Message: fmt.Sprintf("build request failed: %v", err)}
	}
	httpReq.Header.Set("Accept", "application/xml")
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.listClient.Do(httpReq)
	if err != nil {
		c.logger.Errorf(ctx, "[VividClient] transfer post failed: %v", err)
		return TransferOutcome{Status: TransferUnknown, Message: fmt.Sprintf("transfer post failed: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.logger.Errorf(ctx, "[VividClient] transfer response read failed: %v", err)
		return TransferOutcome{Status: TransferUnknown, Message: fmt.Sprintf("read response failed: %v", err)}
	}

	fields, err := parseRecord(body)
	if err != nil {
		c.logger.Errorf(ctx, "[VividClient] transfer response parse failed: %v", err)
		return TransferOutcome{Status: TransferUnknown, Message: "unparseable transfer response"}
	}

	msg := fields["message"]
	if msg == "" {
		msg = "No response message"
	}
	switch fields["success"] {
	case "true":
		return TransferOutcome{Status: TransferSucceeded, Message: msg}
	case "false":
		return TransferOutcome{Status: TransferFailed, Message: msg}
	default:
		return TransferOutcome{Status: TransferUnknown, Message: msg}
	}
}

// fetchList 拉取并解析一张订单列表
func (c *Client) fetchList(ctx context.Context, path string, params url.Values) ([]order.FieldMap, error) {
	body, err := c.get(ctx, c.listClient, path, params)
	if err != nil {
		return nil, err
	}

	records, err := parseRecordList(body, recordContainer)
	if err != nil {
		return nil, errorutil.Parse(fmt.Sprintf("malformed list response from %s", path), err)
	}
	return records, nil
}

// get 发起 GET 请求并读取响应体；非 2xx 归为传输失败
func (c *Client) get(ctx context.Context, client *http.Client, path string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errorutil.Transport("build request failed", err)
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := client.Do(req)
	if err != nil {
		return nil, errorutil.Transport(fmt.Sprintf("request to %s failed", path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errorutil.Transport(fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, path), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errorutil.Transport(fmt.Sprintf("read response from %s failed", path), err)
	}
	return body, nil
}
