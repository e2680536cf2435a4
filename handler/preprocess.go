package handler

import (
	"fmt"

	"github.com/richinex/polyllm/llm"
)

// RequiresPreprocessing reports whether files sent to model must be
// extracted to text first. Local models and models behind a text-only
// endpoint always need it. Models without capability metadata get the
// configured default.
func (h *Handler) RequiresPreprocessing(model string) bool {
	capability := h.capability(model)

	provider := capability.Info.Provider
	if provider == "" {
		provider, _ = llm.SplitModel(model)
	}
	if capability.Local || isLocalProvider(provider) {
		return true
	}
	if capability.TextOnly || !acceptsFileParts(provider) {
		return true
	}

	if !capability.Known {
		h.logger.Debug("no capability metadata, using default",
			"model", model,
			"reason", capability.Reason,
			"preprocess", h.preprocessUnknown)
		return h.preprocessUnknown
	}
	return !capability.Info.SupportsPDFInput
}

// ResolvePreprocessing combines the capability decision with a caller
// override. Forcing preprocessing is always allowed; disabling it for a model
// that requires it is a *ConfigurationError.
func (h *Handler) ResolvePreprocessing(model string, override *bool) (bool, error) {
	if override == nil {
		return h.RequiresPreprocessing(model), nil
	}
	if *override {
		return true, nil
	}
	if h.RequiresPreprocessing(model) {
		return false, &ConfigurationError{
			Model:  model,
			Reason: "preprocessing was disabled but the model cannot read file attachments",
		}
	}
	return false, nil
}

// capability queries the capability source. A panicking source counts as
// unknown capability.
func (h *Handler) capability(model string) (c llm.Capability) {
	defer func() {
		if r := recover(); r != nil {
			c = llm.Capability{Reason: fmt.Sprintf("capability lookup failed: %v", r)}
		}
	}()
	return h.capabilities.Capability(model)
}

func isLocalProvider(name string) bool {
	p, err := llm.ParseProviderType(name)
	return err == nil && p.Local()
}

func acceptsFileParts(name string) bool {
	p, err := llm.ParseProviderType(name)
	return err != nil || p.FileParts()
}
