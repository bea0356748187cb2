package builtin

import (
	"github.com/patterncore/pattern/memory/vectorstore"
	"github.com/patterncore/pattern/tool"
)

// RegisterDefaults registers every built-in tool onto reg: recall,
// manage_core_memory, manage_archival_memory, search_conversations,
// send_message, calculator, and web_request. provider and embed are passed
// straight through to manage_archival_memory; either may be nil. webCfg may
// be nil to accept web_request's defaults.
func RegisterDefaults(reg *tool.Registry, provider vectorstore.Provider, embed EmbedFunc, webCfg *WebRequestConfig) error {
	factories := []func() (tool.Tool, error){
		NewRecall,
		NewManageCoreMemory,
		func() (tool.Tool, error) { return NewManageArchivalMemory(provider, embed) },
		NewSearchConversations,
		NewSendMessage,
		NewCalculator,
		func() (tool.Tool, error) { return NewWebRequest(webCfg) },
	}
	for _, factory := range factories {
		t, err := factory()
		if err != nil {
			return err
		}
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}
