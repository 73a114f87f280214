// Package fasttree implements FastTree gradient boosted regression trees.
//
// A BoostingTrainer repeatedly fits a least-squares tree to the (optionally
// Newton-scaled) negative gradient of an objective, turns the fitted leaves
// into loss-specific steps and adds the tree to an Ensemble. Two objectives
// are provided: TweedieObjective, whose scores are on log scale and whose
// predictions are exp(score), and the squared error RegressionObjective.
//
// The loop supports plain, accelerated and conjugate gradient descent,
// golden-section line search, dropout of earlier trees, leaf smoothing,
// feature subsampling, pruning against a validation set and pluggable
// early stopping rules.
//
// Example:
//
//	train, _ := fasttree.NewDataset(X, y)
//	opts := fasttree.DefaultTweedieOptions()
//	opts.NumTrees = 200
//	res, err := fasttree.NewTweedieTrainer(opts).Fit(ctx, train, nil)
//	if err != nil {
//		return err
//	}
//	pred, _ := res.Predictor.Predict(Xtest)
//
// Training is single-threaded at the iteration level. Within an iteration
// split finding, gradients and score updates run over disjoint ranges on
// NumThreads goroutines.
package fasttree
