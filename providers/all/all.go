// Package all registers every bundled provider adapter, in the manner of
// database/sql drivers:
//
//	import _ "github.com/octanelabs/aisdk/providers/all"
package all

import (
	_ "github.com/octanelabs/aisdk/providers/anthropic"
	_ "github.com/octanelabs/aisdk/providers/azure"
	_ "github.com/octanelabs/aisdk/providers/bedrock"
	_ "github.com/octanelabs/aisdk/providers/gateway"
	_ "github.com/octanelabs/aisdk/providers/google"
	_ "github.com/octanelabs/aisdk/providers/openai"
	_ "github.com/octanelabs/aisdk/providers/openaicompat"
	_ "github.com/octanelabs/aisdk/providers/vertex"
)
