package checkout

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/haln-dev/glowcart/internal/common"
	"github.com/haln-dev/glowcart/internal/lock"
	"github.com/haln-dev/glowcart/internal/pricing"
	"github.com/haln-dev/glowcart/internal/voucher"
)

// Handler exposes the checkout HTTP surface.
type Handler struct {
	Carts     CartSource
	Coupons   voucher.CouponLister
	Validator *voucher.Validator
	Sessions  *Sessions
	Submitter *Submitter
	Guard     lock.Guard
	Engine    pricing.Engine
	Logger    zerolog.Logger
}

type cartResponse struct {
	CartID    string            `json:"cartId"`
	Items     []LineItem        `json:"items"`
	Voucher   *voucher.Voucher  `json:"voucher,omitempty"`
	Breakdown pricing.Breakdown `json:"breakdown"`
}

// GetCart handles GET /api/v1/checkout/cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	sess := h.session(r)
	snap, err := h.refreshCart(r, sess)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	h.renderCart(w, http.StatusOK, sess, snap)
}

// Quote handles POST /api/v1/checkout/quote. It refetches the cart so the
// quote reflects upstream price or stock changes since the last view.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	sess := h.session(r)
	snap, err := h.refreshCart(r, sess)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"breakdown": sess.Quote(h.Engine, snap),
	})
}

type applyVoucherRequest struct {
	Code string `json:"code"`
}

// ApplyVoucher handles POST /api/v1/checkout/voucher. A previously applied
// voucher survives a failed attempt, it is only replaced on success.
func (h *Handler) ApplyVoucher(w http.ResponseWriter, r *http.Request) {
	var req applyVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}

	sess := h.session(r)
	snap, snapErr := h.refreshCart(r, sess)
	if snapErr != nil {
		// Check against the last known cart rather than failing outright.
		snap = sess.CachedSnapshot()
	}

	applied, err := h.Validator.Validate(r.Context(), req.Code, pricing.Subtotal(snap.PricingItems()))
	if err != nil {
		common.RenderError(w, err)
		return
	}
	sess.ApplyVoucher(applied)

	if snapErr != nil {
		// Voucher is applied regardless, return it without a fresh quote.
		common.JSON(w, http.StatusOK, map[string]any{"voucher": applied})
		return
	}
	h.renderCart(w, http.StatusOK, sess, snap)
}

// RemoveVoucher handles DELETE /api/v1/checkout/voucher.
func (h *Handler) RemoveVoucher(w http.ResponseWriter, r *http.Request) {
	sess := h.session(r)
	sess.ClearVoucher()

	snap, err := h.refreshCart(r, sess)
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.renderCart(w, http.StatusOK, sess, snap)
}

// ListVouchers handles GET /api/v1/vouchers.
func (h *Handler) ListVouchers(w http.ResponseWriter, r *http.Request) {
	vouchers, err := h.Coupons.List(r.Context())
	if err != nil {
		common.RenderError(w, err)
		return
	}
	if vouchers == nil {
		vouchers = []voucher.Voucher{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"vouchers": vouchers})
}

// Submit handles POST /api/v1/checkout.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var input SubmitInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}

	sess := h.session(r)
	if err := sess.BeginSubmit(); err != nil {
		common.JSONError(w, http.StatusConflict, "SUBMIT_IN_FLIGHT", "a checkout is already in progress", nil)
		return
	}
	defer sess.EndSubmit()

	release, ok, err := h.Guard.Acquire(r.Context(), sess.Key)
	if err != nil {
		h.Logger.Warn().Err(err).Msg("submit guard unavailable, continuing with local guard only")
	} else if !ok {
		common.JSONError(w, http.StatusConflict, "SUBMIT_IN_FLIGHT", "a checkout is already in progress", nil)
		return
	}
	defer release()

	snap, err := h.refreshCart(r, sess)
	if err != nil {
		common.RenderError(w, err)
		return
	}

	voucherCode := ""
	if applied, ok := sess.AppliedVoucher(); ok {
		voucherCode = applied.Code
	}

	result, err := h.Submitter.Submit(r.Context(), snap, voucherCode, sess.DiscountPercent(), input)
	if err != nil {
		common.RenderError(w, err)
		return
	}

	h.Sessions.Drop(sess.Key)
	common.JSON(w, http.StatusOK, result)
}

func (h *Handler) refreshCart(r *http.Request, sess *Session) (CartSnapshot, error) {
	snap, err := h.Carts.Cart(r.Context())
	if err != nil {
		return CartSnapshot{}, err
	}
	sess.SetSnapshot(snap)
	return snap, nil
}

func (h *Handler) renderCart(w http.ResponseWriter, status int, sess *Session, snap CartSnapshot) {
	resp := cartResponse{
		CartID:    snap.CartID,
		Items:     snap.Items,
		Breakdown: sess.Quote(h.Engine, snap),
	}
	if applied, ok := sess.AppliedVoucher(); ok {
		resp.Voucher = &applied
	}
	if resp.Items == nil {
		resp.Items = []LineItem{}
	}
	common.JSON(w, status, resp)
}

func (h *Handler) session(r *http.Request) *Session {
	return h.Sessions.Get(sessionKey(r))
}

// sessionKey prefers the authenticated user, then the raw bearer token, then
// the client address, so anonymous shoppers still get a stable session.
func sessionKey(r *http.Request) string {
	ctx := r.Context()
	if userID, ok := common.UserID(ctx); ok && userID != "" {
		return "user:" + userID
	}
	if token, ok := common.Bearer(ctx); ok && token != "" {
		sum := sha256.Sum256([]byte(token))
		return "token:" + hex.EncodeToString(sum[:8])
	}
	return "addr:" + common.ClientIP(r)
}
