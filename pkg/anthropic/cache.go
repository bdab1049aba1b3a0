package anthropic

// BuildCachedSystemBlocks constructs a system block with an ephemeral
// cache breakpoint. Long static instructions (the extraction contracts)
// are sent this way so repeated intakes read them from the prompt cache.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text:         text,
			CacheControl: &CacheControl{},
		},
	}
}
