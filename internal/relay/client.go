package relay

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"ciphera/internal/domain"
)

// HTTPClient implements domain.Directory against the relay server's JSON
// contract (spec §6). It takes ownership of no state beyond the base URL
// and an *http.Client tuned by the caller.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient returns a client posting to baseURL. If httpClient is nil,
// a client with conservative timeouts is constructed.
func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   5 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				IdleConnTimeout:       90 * time.Second,
			},
		}
	}
	return &HTTPClient{baseURL: baseURL, http: httpClient}
}

var _ domain.Directory = (*HTTPClient)(nil)

func (c *HTTPClient) post(ctx context.Context, path string, reqBody, respBody any) error {
	return c.postAs(ctx, path, "", reqBody, respBody)
}

// postAs is like post but names the account for a *DirectoryConflictError,
// since /create/ is the only endpoint that can return one.
func (c *HTTPClient) postAs(ctx context.Context, path string, account domain.Username, reqBody, respBody any) error {
	var buf bytes.Buffer
	if reqBody != nil {
		if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
			return fmt.Errorf("relay: encode request: %w", err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("relay: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDirectoryUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		var errBody errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return &domain.DirectoryConflictError{Name: account}
	}
	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrUnknownOPK
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return fmt.Errorf("relay: %s: %s (status %d)", path, errBody.Error, resp.StatusCode)
	}
	if respBody == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("relay: decode response: %w", err)
	}
	return nil
}

func (c *HTTPClient) CreateAccount(ctx context.Context, bundle domain.PreKeyBundle) error {
	req := createRequest{
		Account:      bundle.Name,
		IKPublic:     hex.EncodeToString(bundle.IKPub.Slice()),
		SPKPublic:    hex.EncodeToString(bundle.SPKPub.Slice()),
		SPKSignature: hex.EncodeToString(bundle.SPKSig),
		IKEdPublic:   hex.EncodeToString(bundle.IKEdPub.Slice()),
	}
	if bundle.HasOPK {
		req.OPK = []wireOPK{{ID: bundle.OPKID, Key: hex.EncodeToString(bundle.OPKPub.Slice())}}
	}
	return c.postAs(ctx, "/create/", bundle.Name, req, nil)
}

func (c *HTTPClient) SearchAccounts(ctx context.Context, account domain.Username, query string) ([]domain.Username, error) {
	var names []domain.Username
	if err := c.post(ctx, "/search/", searchRequest{Account: account, Target: query}, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (c *HTTPClient) FetchBundle(ctx context.Context, target domain.Username) (domain.PreKeyBundle, error) {
	var resp sessionBundleResponse
	if err := c.post(ctx, "/session/", sessionBundleRequest{Target: target}, &resp); err != nil {
		return domain.PreKeyBundle{}, err
	}
	return bundleFromResponse(resp)
}

func (c *HTTPClient) PublishSession(ctx context.Context, req domain.SessionRequest) error {
	return c.post(ctx, "/create/session/", toCreateSessionRequest(req), nil)
}

func (c *HTTPClient) ListSessions(ctx context.Context, account domain.Username) ([]domain.Username, error) {
	var names []domain.Username
	if err := c.post(ctx, "/list/session/", listSessionRequest{Target: account}, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (c *HTTPClient) GetSession(ctx context.Context, account, initiator domain.Username) (domain.SessionRequest, error) {
	var resp getSessionResponse
	err := c.post(ctx, "/get/session/", getSessionRequest{Account: initiator, Target: account}, &resp)
	if err != nil {
		return domain.SessionRequest{}, err
	}
	ikpBytes, err := hex.DecodeString(resp.IKP)
	if err != nil {
		return domain.SessionRequest{}, fmt.Errorf("%w: ikp: %v", domain.ErrMalformedRecord, err)
	}
	ikp, err := domain.ParseX25519Public(ikpBytes)
	if err != nil {
		return domain.SessionRequest{}, fmt.Errorf("relay: ikp: %w", err)
	}
	ekpBytes, err := hex.DecodeString(resp.EKP)
	if err != nil {
		return domain.SessionRequest{}, fmt.Errorf("%w: ekp: %v", domain.ErrMalformedRecord, err)
	}
	ekp, err := domain.ParseX25519Public(ekpBytes)
	if err != nil {
		return domain.SessionRequest{}, fmt.Errorf("relay: ekp: %w", err)
	}
	return domain.SessionRequest{
		Account: resp.Account,
		Target:  resp.Target,
		IKPub:   ikp,
		EKPub:   ekp,
		OPKID:   resp.OPKID,
	}, nil
}

func (c *HTTPClient) PostMessage(ctx context.Context, account, target domain.Username, hexRecord string) error {
	req := createMessageRequest{
		Account:   account,
		Target:    target,
		Message:   hexRecord,
		Timestamp: time.Now().Unix(),
	}
	return c.post(ctx, "/create/message/", req, nil)
}

func (c *HTTPClient) PollMessages(ctx context.Context, account domain.Username) ([]domain.MailboxMessage, error) {
	var wireMsgs []wireMessage
	if err := c.post(ctx, "/message/", pollMessageRequest{Account: account}, &wireMsgs); err != nil {
		return nil, err
	}
	out := make([]domain.MailboxMessage, 0, len(wireMsgs))
	for _, m := range wireMsgs {
		out = append(out, domain.MailboxMessage{
			Account:   m.Account,
			Target:    m.Target,
			Message:   m.Message,
			Timestamp: m.Timestamp,
		})
	}
	return out, nil
}

func toCreateSessionRequest(req domain.SessionRequest) createSessionRequest {
	return createSessionRequest{
		Account: req.Account,
		Target:  req.Target,
		IKP:     hex.EncodeToString(req.IKPub.Slice()),
		EKP:     hex.EncodeToString(req.EKPub.Slice()),
		OPKID:   req.OPKID,
	}
}

func bundleFromResponse(resp sessionBundleResponse) (domain.PreKeyBundle, error) {
	ikBytes, err := hex.DecodeString(resp.IKPublic)
	if err != nil {
		return domain.PreKeyBundle{}, fmt.Errorf("%w: ik_public: %v", domain.ErrMalformedRecord, err)
	}
	ik, err := domain.ParseX25519Public(ikBytes)
	if err != nil {
		return domain.PreKeyBundle{}, fmt.Errorf("relay: ik_public: %w", err)
	}
	spkBytes, err := hex.DecodeString(resp.SPKPublic)
	if err != nil {
		return domain.PreKeyBundle{}, fmt.Errorf("%w: spk_public: %v", domain.ErrMalformedRecord, err)
	}
	spk, err := domain.ParseX25519Public(spkBytes)
	if err != nil {
		return domain.PreKeyBundle{}, fmt.Errorf("relay: spk_public: %w", err)
	}
	sig, err := hex.DecodeString(resp.SPKSignature)
	if err != nil {
		return domain.PreKeyBundle{}, fmt.Errorf("%w: spk_signature: %v", domain.ErrMalformedRecord, err)
	}
	ikEdBytes, err := hex.DecodeString(resp.IKEdPublic)
	if err != nil {
		return domain.PreKeyBundle{}, fmt.Errorf("%w: ik_ed_public: %v", domain.ErrMalformedRecord, err)
	}
	ikEd, err := domain.ParseEd25519Public(ikEdBytes)
	if err != nil {
		return domain.PreKeyBundle{}, fmt.Errorf("relay: ik_ed_public: %w", err)
	}
	opkBytes, err := hex.DecodeString(resp.OPK)
	if err != nil {
		return domain.PreKeyBundle{}, fmt.Errorf("%w: opk: %v", domain.ErrMalformedRecord, err)
	}
	opk, err := domain.ParseX25519Public(opkBytes)
	if err != nil {
		return domain.PreKeyBundle{}, fmt.Errorf("relay: opk: %w", err)
	}
	return domain.PreKeyBundle{
		Name:    resp.Account,
		IKPub:   ik,
		SPKPub:  spk,
		SPKSig:  sig,
		OPKPub:  opk,
		OPKID:   resp.ID,
		HasOPK:  true,
		IKEdPub: ikEd,
	}, nil
}
