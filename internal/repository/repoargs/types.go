package repoargs

type RepositoryName string

const (
	BalanceRepoName            RepositoryName = "balance"
	BalanceTransactionRepoName RepositoryName = "balance_transaction"
	WithdrawalRepoName         RepositoryName = "withdrawal"
)
